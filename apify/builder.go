package apify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/types"
)

// Build steps, named in DeployError.Step
const (
	StepValidate = "validate"
	StepDelete   = "delete"
	StepScaffold = "scaffold"
	StepMetadata = "metadata"
	StepSource   = "source"
	StepDeploy   = "deploy"
	StepPublish  = "publish"
)

var (
	actorName = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	// push prints console links such as https://console.apify.com/actors/AbC123xyz#/builds/0.0.1
	consoleActorLink = regexp.MustCompile(`console\.apify\.com/(?:admin/)?actors/([A-Za-z0-9]+)`)
)

// ActorSpec is what to build
type ActorSpec struct {
	Name        string `mapstructure:"name"`
	SourceCode  string `mapstructure:"source_code"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
}

// Deployment describes a published actor
type Deployment struct {
	ActorID string
	Name    string
	Public  bool
	// PublishErr is set when the actor deployed but could not be made public
	PublishErr error
}

// Builder performs idempotent actor rebuilds
type Builder struct {
	runner   Runner
	platform Platform
	workDir  string
	template string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBuilder creates a builder working under cfg.WorkDir
func NewBuilder(runner Runner, platform Platform, cfg config.ApifyConfig, logger *slog.Logger) *Builder {
	return &Builder{
		runner:   runner,
		platform: platform,
		workDir:  cfg.WorkDir,
		template: config.FirstNonEmpty(cfg.Template, "python-start"),
		timeout:  cfg.DeployTimeout,
		logger:   logger,
	}
}

// Build deletes any existing actor of the same name, scaffolds a fresh
// project, injects metadata and source, pushes it and tries to make it
// public. Failures are *types.DeployError naming the step.
func (b *Builder) Build(ctx context.Context, spec ActorSpec) (*Deployment, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	if !actorName.MatchString(spec.Name) {
		return nil, &types.DeployError{Step: StepValidate, Err: fmt.Errorf("actor name %q must be lowercase letters, digits and single hyphens", spec.Name)}
	}
	if strings.TrimSpace(spec.SourceCode) == "" {
		return nil, &types.DeployError{Step: StepValidate, Err: errors.New("source code is empty")}
	}

	log := b.logger.With("actor", spec.Name)

	log.Info("deleting existing actor")
	if err := b.platform.DeleteActor(ctx, spec.Name); err != nil {
		return nil, &types.DeployError{Step: StepDelete, Err: err}
	}

	ws, err := b.scaffold(ctx, spec.Name)
	if err != nil {
		return nil, err
	}

	log.Info("writing actor metadata")
	if err := ws.writeMetadata(spec); err != nil {
		return nil, &types.DeployError{Step: StepMetadata, Err: err}
	}
	if err := ws.WriteFile("src/main.py", []byte(spec.SourceCode)); err != nil {
		return nil, &types.DeployError{Step: StepSource, Err: err}
	}

	log.Info("pushing actor")
	out, err := b.runner.Run(ctx, ws.Root(), "push")
	if err != nil {
		return nil, &types.DeployError{Step: StepDeploy, Output: tail(out, 2000), Err: err}
	}

	actorID := parseActorID(out)
	if actorID == "" {
		if actorID, err = b.platform.ActorID(ctx, spec.Name); err != nil {
			return nil, &types.DeployError{Step: StepDeploy, Output: tail(out, 2000), Err: fmt.Errorf("pushed but actor id not found: %w", err)}
		}
	}

	dep := &Deployment{ActorID: actorID, Name: spec.Name}
	if err := b.platform.SetPublic(ctx, actorID); err != nil {
		log.Warn("actor deployed but could not be made public", "actor_id", actorID, "error", err)
		dep.PublishErr = &types.DeployError{Step: StepPublish, Err: err}
	} else {
		dep.Public = true
	}

	log.Info("actor deployed", "actor_id", actorID, "public", dep.Public)
	return dep, nil
}

func (b *Builder) scaffold(ctx context.Context, name string) (*Workspace, error) {
	if err := os.MkdirAll(b.workDir, 0o755); err != nil {
		return nil, &types.DeployError{Step: StepScaffold, Err: err}
	}

	// a previous local scaffold would make create fail
	dir := filepath.Join(b.workDir, name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, &types.DeployError{Step: StepScaffold, Err: err}
	}

	b.logger.Info("scaffolding actor", "actor", name, "template", b.template)
	out, err := b.runner.Run(ctx, b.workDir, "create", name, "--template", b.template)
	if err != nil {
		return nil, &types.DeployError{Step: StepScaffold, Output: tail(out, 2000), Err: err}
	}

	ws, err := NewWorkspace(dir)
	if err != nil {
		return nil, &types.DeployError{Step: StepScaffold, Err: err}
	}
	return ws, nil
}

// writeMetadata merges name, title and description into .actor/actor.json,
// keeping whatever else the template put there
func (w *Workspace) writeMetadata(spec ActorSpec) error {
	meta := map[string]any{}
	if data, err := w.ReadFile(".actor/actor.json"); err == nil {
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("template actor.json: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if _, ok := meta["actorSpecification"]; !ok {
		meta["actorSpecification"] = 1
	}
	if _, ok := meta["version"]; !ok {
		meta["version"] = "0.0"
	}
	meta["name"] = spec.Name
	meta["title"] = config.FirstNonEmpty(spec.Title, spec.Name)
	meta["description"] = config.FirstNonEmpty(spec.Description, "Built by actorglue")

	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return err
	}
	return w.WriteFile(".actor/actor.json", data)
}

func parseActorID(output string) string {
	m := consoleActorLink.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
