package main

import (
	"context"
	"fmt"

	"github.com/BonelessWater/aura/internal/chunker"
	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/indexer"
	"github.com/BonelessWater/aura/internal/keyword"
	"github.com/BonelessWater/aura/internal/search"
	"github.com/BonelessWater/aura/internal/sink"
	"github.com/BonelessWater/aura/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.KeywordIndex
	Sinks        sink.Multi
	Assembler    *chunker.Assembler
	Engine       *search.Engine
	Indexer      *indexer.Indexer
}

// componentOptions selects the optional parts of initializeComponents.
type componentOptions struct {
	sinks bool // open the export sinks named in config
	force bool // re-ingest files whose ledger entry is unchanged
}

func (c *Components) Close() {
	if c.Sinks != nil {
		_ = c.Sinks.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, o componentOptions) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize keyword index: %w", err))
	}
	c.KeywordIndex = keywordIndex

	asm, err := chunker.NewFromConfig(&cfg.Chunking, cfg.Clusters, chunker.WithLogger(logger))
	if err != nil {
		return fail(fmt.Errorf("failed to initialize assembler: %w", err))
	}
	c.Assembler = asm

	idxOpts := []indexer.IndexerOption{indexer.WithLogger(logger), indexer.WithForce(o.force)}
	if o.sinks {
		sinksCfg := sinksConfig(cfg)
		sinks, err := sink.FromConfig(ctx, &sinksCfg, logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize sinks: %w", err))
		}
		c.Sinks = sinks
		if len(sinks) > 0 {
			idxOpts = append(idxOpts, indexer.WithSink(sinks))
		}
	}

	c.Engine = search.NewEngine(store, keywordIndex, &cfg.Search)
	c.Indexer = indexer.NewIndexer(store, keywordIndex, asm, idxOpts...)
	return c, nil
}

// sinksConfig returns the sink settings with chunking.widen_chunk_key carried over to S3 keys.
func sinksConfig(cfg *config.Config) config.SinksConfig {
	out := cfg.Sinks
	if cfg.Chunking.WidenChunkKey {
		out.S3.KeyBySource = true
	}
	return out
}
