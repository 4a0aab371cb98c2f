// Package e2e provides end-to-end tests over a small autoimmune literature corpus.
package e2e

import (
	"fmt"
	"strings"
)

// E2EArticle is one article of the corpus with the cluster its abstract should be tagged with.
type E2EArticle struct {
	PMCID    string
	DOI      string
	Journal  string
	Year     int
	Title    string
	Cluster  string
	Abstract []string
	Body     []string
}

// QueryTestCase defines a query and the article that must appear in its hits.
type QueryTestCase struct {
	Query         string
	ExpectedPMCID string
	Cluster       string
	Description   string
}

// Corpus holds articles and query test cases for E2E tests.
type Corpus struct {
	Articles     []E2EArticle
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

// methods is the shared body text; it carries no cluster keywords.
var methods = []string{
	"Participants were recruited from outpatient clinics between 2012 and 2019. " +
		"Outcomes were assessed by investigators blinded to treatment allocation.",
	"The study protocol was approved by the institutional review board. " +
		"Missing data were handled by multiple imputation and results were pooled across sites.",
}

// BuildCorpus returns the corpus: four articles per default cluster, each with a
// signature query that appears only in its own abstract.
func BuildCorpus() *Corpus {
	topics := []struct {
		cluster, title, query string
		abstract              []string
	}{
		{"Systemic", "Hydroxychloroquine adherence in lupus", "hydroxychloroquine adherence", []string{
			"Hydroxychloroquine adherence was measured in patients with systemic lupus erythematosus.",
			"Low adherence predicted flares within one year."}},
		{"Systemic", "Anti-dsDNA titres and renal flares", "proliferative nephritis", []string{
			"Rising anti-dsDNA titres preceded proliferative nephritis in lupus cohorts.",
			"Complement consumption tracked renal activity."}},
		{"Systemic", "Nailfold capillaroscopy in systemic sclerosis", "nailfold capillaroscopy", []string{
			"Nailfold capillaroscopy patterns were graded in systemic sclerosis.",
			"Scleroderma patients with late patterns developed digital ulcers."}},
		{"Systemic", "Salivary gland imaging in Sjogren syndrome", "salivary ultrasonography", []string{
			"Salivary ultrasonography was compared with labial biopsy in primary Sjogren syndrome.",
			"Antinuclear antibodies were present in most participants."}},

		{"Musculoskeletal/Rheumatic", "Anti-CCP and radiographic damage", "methotrexate tapering", []string{
			"Anti-CCP positivity predicted joint erosion in early rheumatoid arthritis.",
			"Methotrexate tapering was safe in sustained remission."}},
		{"Musculoskeletal/Rheumatic", "Sacroiliac imaging in axial disease", "sacroiliac", []string{
			"Sacroiliac magnetic resonance findings were scored in ankylosing spondylitis.",
			"Spondyloarthritis classification improved with imaging."}},
		{"Musculoskeletal/Rheumatic", "Enthesitis in psoriatic arthritis", "enthesitis", []string{
			"Enthesitis ultrasound scores were recorded in psoriatic arthritis.",
			"Synovitis persisted despite biologic therapy."}},
		{"Musculoskeletal/Rheumatic", "Temporal artery ultrasound in polymyalgia", "temporal artery", []string{
			"Temporal artery ultrasound was performed in polymyalgia rheumatica.",
			"Rheumatoid factor was negative in every case."}},

		{"Gastrointestinal", "Faecal calprotectin monitoring", "endoscopic relapse", []string{
			"Faecal calprotectin was monitored monthly in Crohn disease.",
			"Rising values anticipated endoscopic relapse."}},
		{"Gastrointestinal", "Vedolizumab induction", "vedolizumab", []string{
			"Vedolizumab induction achieved mucosal healing in ulcerative colitis.",
			"Inflammatory bowel disease registries confirmed durability."}},
		{"Gastrointestinal", "Gluten challenge in adults", "gluten challenge", []string{
			"A controlled gluten challenge was given to adults with celiac disease.",
			"Coeliac serology rose after two weeks."}},
		{"Gastrointestinal", "Budesonide versus prednisolone", "budesonide", []string{
			"Budesonide induction was compared with prednisolone in autoimmune hepatitis.",
			"Patients with primary biliary overlap were excluded."}},

		{"Endocrine", "Teplizumab in relatives at risk", "teplizumab", []string{
			"Teplizumab delayed clinical type 1 diabetes in relatives at risk.",
			"Islet autoantibodies declined during treatment."}},
		{"Endocrine", "Selenium supplementation and thyroid antibodies", "selenium supplementation", []string{
			"Selenium supplementation lowered anti-TPO levels in Hashimoto thyroiditis."}},
		{"Endocrine", "Orbitopathy severity grading", "orbitopathy", []string{
			"Orbitopathy severity was graded in Graves disease.",
			"Thyroid peroxidase antibodies did not predict eye involvement."}},
		{"Endocrine", "Adrenal crisis prevention", "hydrocortisone dosing", []string{
			"Adrenal crisis incidence was recorded in Addison disease.",
			"Hydrocortisone dosing education reduced emergency admissions.",
			"Thyroiditis coexisted in a third of patients."}},

		{"Neurological", "Ocrelizumab and disease activity", "ocrelizumab", []string{
			"Ocrelizumab reduced disease activity in multiple sclerosis.",
			"New demyelinating lesions were rare on follow-up imaging."}},
		{"Neurological", "Thymectomy outcomes", "thymectomy", []string{
			"Thymectomy improved outcomes in myasthenia gravis.",
			"Acetylcholine receptor antibodies fell after surgery."}},
		{"Neurological", "Aquaporin-4 testing", "eculizumab", []string{
			"Aquaporin-4 antibody testing confirmed neuromyelitis optica in most cases.",
			"Eculizumab prevented attacks."}},
		{"Neurological", "Immunoglobulin for acute neuropathy", "immunoglobulin", []string{
			"Intravenous immunoglobulin was given for Guillain-Barre syndrome.",
			"Some patients were later reclassified as CIDP."}},

		{"Dermatological", "Ruxolitinib cream for depigmentation", "ruxolitinib", []string{
			"Ruxolitinib cream repigmented facial vitiligo.",
			"Alopecia areata coexisted in few patients."}},
		{"Dermatological", "Interleukin inhibitors for plaques", "interleukin inhibitors", []string{
			"Interleukin inhibitors cleared plaque psoriasis in most participants.",
			"Hidradenitis was an exclusion criterion."}},
		{"Dermatological", "Rituximab for blistering disease", "rituximab", []string{
			"Rituximab achieved complete remission in pemphigus vulgaris.",
			"Bullous pemphigoid cases were analysed separately."}},
		{"Dermatological", "Baricitinib for hair loss", "baricitinib", []string{
			"Baricitinib regrew scalp hair in severe alopecia areata.",
			"Vitiligo was present at baseline in some."}},
	}

	c := &Corpus{}
	for i, tp := range topics {
		pmc := fmt.Sprintf("PMC%07d", 4100001+i)
		c.Articles = append(c.Articles, E2EArticle{
			PMCID:    pmc,
			DOI:      fmt.Sprintf("10.5555/aura.%03d", i+1),
			Journal:  "Journal of Autoimmunity",
			Year:     2010 + i%12,
			Title:    tp.title,
			Cluster:  tp.cluster,
			Abstract: tp.abstract,
			Body:     methods,
		})
		c.TestCases = append(c.TestCases, QueryTestCase{
			Query:         tp.query,
			ExpectedPMCID: pmc,
			Cluster:       tp.cluster,
			Description:   fmt.Sprintf("query %q should return %s", tp.query, pmc),
		})
	}
	c.TotalDocs = len(c.Articles)
	c.TotalQueries = len(c.TestCases)
	return c
}

// AbstractText returns the article's abstract paragraphs joined by spaces.
func (a E2EArticle) AbstractText() string {
	return strings.Join(a.Abstract, " ")
}
