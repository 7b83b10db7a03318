package providers

import (
	"context"
	"os"
	"time"

	clc "github.com/cloudwego/eino-ext/callbacks/cozeloop"
	"github.com/cloudwego/eino/callbacks"
	"github.com/coze-dev/cozeloop-go"
)

// InitTracing installs the cozeloop callback handler globally when both
// COZE_LOOP_API_TOKEN and COZELOOP_WORKSPACE_ID are set; otherwise it is a
// no-op. The returned cleanup flushes pending traces and must be called
// before exit.
func InitTracing(ctx context.Context) (func(), error) {
	apiToken := os.Getenv("COZE_LOOP_API_TOKEN")
	workspaceID := os.Getenv("COZELOOP_WORKSPACE_ID")
	if apiToken == "" || workspaceID == "" {
		return func() {}, nil
	}

	client, err := cozeloop.NewClient(
		cozeloop.WithAPIToken(apiToken),
		cozeloop.WithWorkspaceID(workspaceID),
	)
	if err != nil {
		return nil, err
	}

	callbacks.AppendGlobalHandlers(clc.NewLoopHandler(client))

	cleanup := func() {
		// Give in-flight spans a moment to flush.
		time.Sleep(5 * time.Second)
		client.Close(ctx)
	}
	return cleanup, nil
}
