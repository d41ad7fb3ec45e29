package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scape1989/geo-logic/internal/checker"
	"github.com/scape1989/geo-logic/internal/composite"
	"github.com/scape1989/geo-logic/internal/config"
	"github.com/scape1989/geo-logic/internal/geom"
	"github.com/scape1989/geo-logic/internal/journal"
	"github.com/scape1989/geo-logic/internal/model"
	"github.com/scape1989/geo-logic/internal/schedule"
	"github.com/scape1989/geo-logic/internal/tool"
)

// sampleRetries bounds re-sampling when a random instance degenerates
// (coincident points, parallel lines).
const sampleRetries = 5

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <catalogue>",
		Short: "Verify the proofs of a tool catalogue on random instances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journalPath, _ := cmd.Flags().GetString("journal")
			inline, _ := cmd.Flags().GetBool("inline")
			every, _ := cmd.Flags().GetString("every")
			seed, _ := cmd.Flags().GetUint64("seed")

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))

			counter := &failureCounter{}
			if journalPath != "" {
				j, err := journal.Open(journalPath)
				if err != nil {
					return err
				}
				defer func() { _ = j.Close() }()
				counter.next = j
			}

			c := checker.New(logger,
				checker.WithRecorder(counter),
				checker.WithProgress(func(done, total int) {
					if total > 0 {
						fmt.Fprintf(os.Stderr, "checking: %d/%d\n", done, total)
					}
				}),
			)
			if !inline {
				c.Start()
			}

			loaded, err := config.Load(args[0], c)
			if err != nil {
				return err
			}

			v := &verifier{
				logger:   logger,
				checker:  c,
				loaded:   loaded,
				recorded: counter,
				rand:     rand.New(rand.NewPCG(seed, 0)),
			}

			if every != "" {
				return v.watch(every)
			}
			return v.sweep(cmd.Context())
		},
	}
	cmd.Flags().String("journal", "", "Path to a SQLite journal for verification outcomes")
	cmd.Flags().Bool("inline", false, "Verify synchronously instead of on the background worker")
	cmd.Flags().String("every", "", "Cron expression to re-run the sweep periodically")
	cmd.Flags().Uint64("seed", 0, "Seed for random witness sampling")
	return cmd
}

func failuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures <journal>",
		Short: "Print recent failed proof checks from a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			j, err := journal.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			entries, err := j.Failures(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No failed checks recorded.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %s(%s)\n    %s\n", e.CreatedAt, e.Tool, e.Args, e.Err)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of failures to print")
	return cmd
}

// failureCounter counts failed outcomes before forwarding them to an
// optional downstream recorder.
type failureCounter struct {
	failed atomic.Int64
	next   checker.Recorder
}

func (f *failureCounter) Record(ctx context.Context, rec checker.Record) error {
	if !rec.OK {
		f.failed.Add(1)
	}
	if f.next != nil {
		return f.next.Record(ctx, rec)
	}
	return nil
}

// verifier drives verification sweeps over a loaded catalogue.
type verifier struct {
	logger   *slog.Logger
	checker  *checker.Checker
	loaded   *config.Loaded
	recorded *failureCounter
	rand     *rand.Rand
}

// sweep runs every proved tool once on a random instance and waits for
// all resulting obligations.
func (v *verifier) sweep(ctx context.Context) error {
	start := time.Now()
	before := v.recorded.failed.Load()
	proved := 0
	var runFailures int64

	for _, t := range v.loaded.Tools {
		if !t.HasProof() {
			continue
		}
		proved++
		if err := v.runOnce(ctx, t); err != nil {
			runFailures++
			v.logger.Warn("verify: tool failed", "tool", t.Name(), "error", err)
		}
	}

	if v.checker.Running() {
		if err := v.checker.Wait(ctx); err != nil {
			return err
		}
	}

	failures := v.recorded.failed.Load() - before + runFailures
	v.logger.Info("verify: DONE",
		"tools", proved,
		"checked", v.checker.CheckedNum(),
		"failures", failures,
		"elapsed", time.Since(start),
	)
	if failures > 0 {
		return fmt.Errorf("%d proof checks failed", failures)
	}
	return nil
}

// runOnce runs a tool at checked strictness on sampled witnesses,
// re-sampling when the instance degenerates.
func (v *verifier) runOnce(ctx context.Context, t *composite.Tool) error {
	var lastErr error
	for range sampleRetries {
		ws := make([]geom.Witness, 0, len(t.ArgTypes()))
		for _, typ := range t.ArgTypes() {
			w, err := geom.Sample(v.rand, typ)
			if err != nil {
				return err
			}
			ws = append(ws, w)
		}

		m := model.New(v.loaded.Registry)
		ids := m.AddObjects(ws)
		_, err := t.Run(ctx, nil, ids, m, tool.Check)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, tool.ErrDegenerate) {
			return err
		}
	}
	return lastErr
}

// watch re-runs the sweep on a cron schedule until interrupted.
func (v *verifier) watch(spec string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := schedule.New(v.logger)
	err := s.Register(&schedule.FuncJob{
		JobName: "verify_sweep",
		Spec:    spec,
		Fn:      v.sweep,
	})
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	return s.Stop(context.Background())
}
