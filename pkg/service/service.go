// Package service wires the client together from a Config. The CLI and the MCP
// server both drive a Service.
package service

import (
	"context"
	"fmt"

	"github.com/riskscope/riskscope/pkg/archive"
	"github.com/riskscope/riskscope/pkg/classify"
	"github.com/riskscope/riskscope/pkg/config"
	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/export"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/poller"
	"github.com/riskscope/riskscope/pkg/remote"
	"github.com/riskscope/riskscope/pkg/submission"
	"github.com/riskscope/riskscope/pkg/types"
)

// Service bundles the components of one client session
type Service struct {
	Config       *config.Config
	Remote       *remote.Client
	Poller       *poller.Poller
	Orchestrator *submission.Orchestrator
	Downloader   *export.Downloader

	archive *archive.Client
}

// New builds a service. Alerts go to notifier; with the archive enabled the
// GCP clients are created here and released by Close.
func New(ctx context.Context, cfg *config.Config, notifier types.Notifier) (*Service, error) {
	logger.SetLevel(cfg.Log.Level)

	tm := cfg.TimeoutManager()
	rc := remote.NewClient(remote.Options{
		BaseURL:   cfg.Backend.BaseURL,
		Endpoints: cfg.Backend.Endpoints,
		Token:     cfg.Backend.Token,
		Timeouts:  tm,
	})

	policy, err := cfg.PollPolicy()
	if err != nil {
		return nil, fmt.Errorf("invalid poll policy: %w", err)
	}
	// poll alerts are raised by the orchestrator, which knows if the job is still current
	p := poller.New(rc,
		poller.WithPolicy(policy),
		poller.WithTimeouts(tm),
	)

	s := &Service{Config: cfg, Remote: rc, Poller: p}

	var sink archive.Sink = archive.Nop{}
	if cfg.Archive.Enabled {
		cfg.ApplyEmulators()
		ac, err := archive.NewClient(ctx, cfg.Archive.Project)
		if err != nil {
			return nil, fmt.Errorf("failed to start archive: %w", err)
		}
		s.archive = ac
		sink = archiveSink(ac, cfg.Archive)
		logger.Infof("archiving outcomes to project %s", cfg.Archive.Project)
	}

	s.Orchestrator = submission.New(rc, p,
		submission.WithNotifier(notifier),
		submission.WithSink(sink),
	)
	s.Downloader = export.NewDownloader(rc, rc.Endpoints(), cfg.Export.Dir)
	return s, nil
}

func archiveSink(ac *archive.Client, cfg config.ArchiveConfig) archive.Sink {
	var m archive.Multi
	if cfg.Collection != "" {
		m = append(m, &archive.FirestoreSink{Store: ac, Collection: cfg.Collection})
	}
	if cfg.Topic != "" {
		m = append(m, &archive.PubSubSink{Publisher: ac, Topic: cfg.Topic})
	}
	return m
}

// Submit runs a job to completion
func (s *Service) Submit(ctx context.Context, job *types.Job) (*submission.Outcome, error) {
	return s.Orchestrator.Submit(ctx, job)
}

// Status asks once for the state of a task
func (s *Service) Status(ctx context.Context, handle types.TaskHandle) (*types.TaskStatus, error) {
	return s.Poller.PollOnce(ctx, handle)
}

// Result returns the current result and the kind of job that produced it
func (s *Service) Result() (*classify.Result, submission.State) {
	st := s.Orchestrator.State()
	return st.Result, st
}

// Actions lists what can be done with the current result
func (s *Service) Actions() []export.Action {
	st := s.Orchestrator.State()
	return export.Actions(st.Kind, st.Manual, st.HasResult(), st.Loading)
}

// Export performs a download or print action on the current result and
// returns the written path
func (s *Service) Export(ctx context.Context, action export.Action) (string, error) {
	st := s.Orchestrator.State()
	if !st.HasResult() {
		return "", rerrors.New(rerrors.ErrNoData, "no result").WithUserMessage(export.NoDataMessage)
	}
	if !export.Allowed(action, export.Actions(st.Kind, st.Manual, true, st.Loading)) {
		return "", rerrors.New(rerrors.ErrValidation, fmt.Sprintf("%s is not available for this result", action)).
			WithContext("kind", st.Kind.String())
	}
	if action == export.ActionPrint {
		return export.WritePrint(s.Config.Export.Dir, st.Result)
	}
	return s.Downloader.Download(ctx, action, st.Kind, st.Result)
}

// Reset clears the current result
func (s *Service) Reset() {
	s.Orchestrator.Reset()
}

// Close releases the archive clients
func (s *Service) Close() error {
	if s.archive != nil {
		return s.archive.Close()
	}
	return nil
}
