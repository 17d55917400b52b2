package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"bountyd/internal/domain"
)

// DaemonConfig tunes the poll loop.
type DaemonConfig struct {
	PollInterval time.Duration
	Concurrency  int
}

// Daemon polls for submitted tasks and drives each through package fetch,
// verification, signing and settlement. Distinct tasks run concurrently;
// one task's pipeline stays sequential. Cycle errors are logged and the
// task is left for the next poll, never dropped.
type Daemon struct {
	repo      TaskRepository
	store     ContentStore
	engine    *Engine
	signer    ReportSigner
	bridge    *Bridge
	processed ProcessedStore
	cfg       DaemonConfig
	logger    *log.Logger
}

func NewDaemon(repo TaskRepository, store ContentStore, engine *Engine, signer ReportSigner, bridge *Bridge, processed ProcessedStore, cfg DaemonConfig, logger *log.Logger) *Daemon {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Daemon{
		repo:      repo,
		store:     store,
		engine:    engine,
		signer:    signer,
		bridge:    bridge,
		processed: processed,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled. An immediate first cycle runs before
// the ticker takes over.
func (d *Daemon) Run(ctx context.Context) error {
	d.RunCycle(ctx)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.RunCycle(ctx)
		}
	}
}

// RunCycle processes every submitted task not yet seen in this run.
func (d *Daemon) RunCycle(ctx context.Context) {
	tasks, err := d.repo.ListByStatus(ctx, domain.StatusSubmitted)
	if err != nil {
		d.logger.Printf("daemon: list submitted tasks: %v", err)
		return
	}

	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, task := range tasks {
		seen, err := d.processed.Seen(ctx, task.ID)
		if err != nil {
			d.logger.Printf("daemon: processed lookup for task %s: %v", task.ID, err)
			continue
		}
		if seen {
			continue
		}

		wg.Add(1)
		go func(task domain.Task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if err := d.processSubmission(ctx, task); err != nil {
				d.logger.Printf("daemon: task %s left for next cycle: %v", task.ID, err)
				return
			}
			if err := d.processed.MarkProcessed(ctx, task.ID); err != nil {
				d.logger.Printf("daemon: mark task %s processed: %v", task.ID, err)
			}
		}(task)
	}
	wg.Wait()
}

func (d *Daemon) processSubmission(ctx context.Context, task domain.Task) error {
	raw, err := d.store.Get(ctx, task.EvidenceCID)
	if err != nil {
		return fmt.Errorf("fetch evidence %s: %w", task.EvidenceCID, err)
	}
	var bundle domain.EvidenceBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return fmt.Errorf("decode evidence %s: %w", task.EvidenceCID, err)
	}

	report, err := d.engine.Verify(ctx, task, task.EvidenceCID, bundle)
	if err != nil {
		return fmt.Errorf("verify evidence: %w", err)
	}
	if err := d.signer.SignReport(&report); err != nil {
		return fmt.Errorf("sign report: %w", err)
	}

	outcome, err := d.bridge.Settle(ctx, task, report)
	if err != nil {
		return fmt.Errorf("settle report: %w", err)
	}
	if outcome.Approved {
		d.logger.Printf("daemon: task %s approved, report %s, tx %s", task.ID, outcome.ReportCID, outcome.Receipt.TxID)
	} else {
		d.logger.Printf("daemon: task %s rejected, score %.2f, report %s", task.ID, report.Score, outcome.ReportCID)
	}
	return nil
}
