package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turbo360/crewupload/internal/auth"
	"github.com/turbo360/crewupload/internal/files"
	"github.com/turbo360/crewupload/internal/tus"
	"github.com/turbo360/crewupload/internal/ui"
	uiCommands "github.com/turbo360/crewupload/internal/ui/commands"
	"github.com/turbo360/crewupload/internal/upload"
	"github.com/turbo360/crewupload/internal/version"
	"github.com/turbo360/crewupload/pkg/config"
	"github.com/turbo360/crewupload/pkg/manifest"
)

const bytesPerMB = 1024 * 1024

// NewUploadCmd creates the upload command
func NewUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [paths...]",
		Short: "Upload files and folders to the active session",
		Long: `Upload files and folders to the active session.

Folders are walked recursively and hidden files are skipped. Files are sent in
chunks and each chunk is retried on network and server errors. Press q or Ctrl+C
to pause every upload and quit.

Example:
  crewupload upload /Volumes/A001
  crewupload upload ./day3 --exclude "**/*.tmp" --concurrency 4
  crewupload upload --manifest ./crewupload.toml`,
		RunE: runUpload,
	}
	cmd.Flags().StringArray("exclude", nil, "Glob of files to skip (repeatable)")
	cmd.Flags().String("manifest", "", "Batch manifest listing sources, excludes and the session")
	cmd.Flags().Int("concurrency", 0, "Files uploaded at the same time (default from config)")
	cmd.Flags().Int("chunk-size-mb", 0, "Size of each upload request in MB (default from config)")
	return cmd
}

// uploadOptions is the batch after merging flags, the manifest and the config
type uploadOptions struct {
	Sources     []string
	Exclude     []string
	Concurrency int
	ChunkSizeMB int
	Manifest    *manifest.Manifest
}

func resolveUploadOptions(cmd *cobra.Command, args []string, cfg *config.Config) (uploadOptions, error) {
	opts := uploadOptions{
		Concurrency: cfg.Upload.MaxConcurrent,
		ChunkSizeMB: cfg.Upload.ChunkSizeMB,
	}

	if path, _ := cmd.Flags().GetString("manifest"); path != "" {
		m, err := manifest.Load(path)
		if err != nil {
			return opts, ui.NewValidationError(err)
		}
		opts.Manifest = m
		opts.Sources = append(opts.Sources, m.Upload.Sources...)
		opts.Exclude = append(opts.Exclude, m.Upload.Exclude...)
		if m.Upload.Concurrency > 0 {
			opts.Concurrency = m.Upload.Concurrency
		}
		if m.Upload.ChunkSizeMB > 0 {
			opts.ChunkSizeMB = m.Upload.ChunkSizeMB
		}
	}

	opts.Sources = append(opts.Sources, args...)
	exclude, _ := cmd.Flags().GetStringArray("exclude")
	opts.Exclude = append(opts.Exclude, exclude...)

	if cmd.Flags().Changed("concurrency") {
		opts.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if cmd.Flags().Changed("chunk-size-mb") {
		opts.ChunkSizeMB, _ = cmd.Flags().GetInt("chunk-size-mb")
	}

	switch {
	case len(opts.Sources) == 0:
		return opts, ui.NewValidationError(errors.New("nothing to upload. Pass files or folders, or --manifest"))
	case opts.Concurrency < 0 || opts.Concurrency > 32:
		return opts, ui.NewValidationError(fmt.Errorf("--concurrency must be between 1 and 32, got %d", opts.Concurrency))
	case opts.ChunkSizeMB < 0 || opts.ChunkSizeMB > 1024:
		return opts, ui.NewValidationError(fmt.Errorf("--chunk-size-mb must be between 1 and 1024, got %d", opts.ChunkSizeMB))
	}
	return opts, nil
}

// buildFiles turns enumerated entries into engine files tagged with the session
func buildFiles(entries []files.Entry, session *config.Session) []upload.File {
	out := make([]upload.File, 0, len(entries))
	for _, e := range entries {
		out = append(out, upload.File{
			Path:        e.Path,
			Size:        e.Size,
			ContentType: e.ContentType,
			Name:        e.RelativePath,
			Metadata: map[string]string{
				"sessionId":    session.ID,
				"projectName":  session.ProjectName,
				"crewName":     session.CrewName,
				"relativePath": e.RelativePath,
			},
		})
	}
	return out
}

func runUpload(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, displayOpts, err := commandContext(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return ui.NewConfigurationError(err)
	}

	opts, err := resolveUploadOptions(cmd, args, cfg)
	if err != nil {
		return err
	}

	provider := auth.NewProvider(cfg, config.Save)
	if err := requireLogin(cmd, provider); err != nil {
		return err
	}

	session, err := resolveSession(cmd.Context(), cfg, provider, opts.Manifest)
	if err != nil {
		return err
	}

	entries, err := files.Enumerate(opts.Sources, opts.Exclude)
	if err != nil {
		return ui.NewFileSystemError(err)
	}
	if len(entries) == 0 {
		return ui.NewFileSystemError(errors.New("no files found to upload"))
	}
	if err := files.DetectContentTypes(cmd.Context(), entries, opts.Concurrency); err != nil {
		return ui.NewFileSystemError(err)
	}
	slog.Info("Files enumerated", "count", len(entries), "bytes", files.TotalSize(entries))

	transfer, err := tus.NewClient(tus.Config{
		Endpoint:       cfg.GetEnvConfig().UploadUrl,
		Tokens:         provider,
		RequestTimeout: cfg.Upload.RequestTimeout,
		UserAgent:      version.UserAgent(),
	})
	if err != nil {
		return ui.NewConfigurationError(err)
	}

	scheduler, err := upload.NewScheduler(upload.Options{
		Config: upload.Config{
			MaxConcurrent:  opts.Concurrency,
			ChunkSize:      int64(opts.ChunkSizeMB) * bytesPerMB,
			ReportInterval: cfg.Upload.ReportInterval,
		},
		Transfer: transfer,
		Auth:     provider,
	})
	if err != nil {
		return ui.NewInternalError(err)
	}
	defer scheduler.Close()

	model := uiCommands.NewUploadView(cmd.Context(), uiCommands.UploadConfig{
		DisplayConfig: displayOpts,
		Engine:        scheduler,
		Files:         buildFiles(entries, session),
		Session:       session,
		Out:           cmd.OutOrStdout(),
	})
	p := newProgram(model, displayOpts)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bus := upload.NewBus(scheduler.Config().ReportInterval, uiCommands.NewProgramListener(p))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx, scheduler.Events())
	})

	runErr := runProgram(p)

	scheduler.Close()
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Progress reporting stopped", "error", err)
	}
	return runErr
}

// resolveSession returns the active session, starting the manifest's session when it names a different one
func resolveSession(ctx context.Context, cfg *config.Config, provider *auth.Provider, m *manifest.Manifest) (*config.Session, error) {
	if m != nil && m.HasSession() {
		active := cfg.Session
		if active == nil || active.ProjectName != m.Session.Project || active.CrewName != m.Session.Crew {
			client, err := newAPIClient(cfg, provider)
			if err != nil {
				return nil, err
			}
			return startSession(ctx, client, cfg, sessionRequestFromManifest(m))
		}
	}

	if cfg.Session == nil {
		return nil, ui.NewValidationError(errors.New("no active session. Start one with 'crewupload session start' or add a [session] table to the manifest"))
	}
	return cfg.Session, nil
}
