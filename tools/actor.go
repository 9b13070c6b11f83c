package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sammcj/actorglue/apify"
	"github.com/sammcj/actorglue/types"
)

// ActorBuilder deploys actors
type ActorBuilder interface {
	Build(ctx context.Context, spec apify.ActorSpec) (*apify.Deployment, error)
}

// NewBuildActor creates the build_apify_actor tool. A failed step is
// reported as "Failed at step <step>: <detail>" text rather than an error so
// the model can correct its source and retry.
func NewBuildActor(b ActorBuilder) *Tool[apify.ActorSpec] {
	spec := mcp.NewTool("build_apify_actor",
		mcp.WithDescription("Build and deploy a Python Apify actor from source code. "+
			"Any existing actor with the same name is deleted and rebuilt from scratch. "+
			"Returns the deployed actor id."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Actor name: lowercase letters, digits and single dashes")),
		mcp.WithString("source_code", mcp.Required(), mcp.Description("Complete contents of src/main.py")),
		mcp.WithString("title", mcp.Description("Human readable title")),
		mcp.WithString("description", mcp.Description("What the actor does")),
	)

	return New(spec, func(ctx context.Context, s apify.ActorSpec) (string, error) {
		dep, err := b.Build(ctx, s)
		if err != nil {
			var deployErr *types.DeployError
			if errors.As(err, &deployErr) {
				return deployErr.Error(), nil
			}
			return "", err
		}
		if dep.PublishErr != nil {
			return fmt.Sprintf("%s (deployed, but could not be made public: %v)", dep.ActorID, dep.PublishErr), nil
		}
		return dep.ActorID, nil
	})
}
