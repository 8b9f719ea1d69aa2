package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/studio"
	"github.com/genstudio/api/internal/task"
)

func generateFlags(fs *pflag.FlagSet) {
	fs.String("provider", model.ProviderNanoBanana, "provider route: nano-banana, veo3, sora2")
	fs.String("type", "", "generation type (derived from the provider and --image when empty)")
	fs.String("prompt", "", "prompt text")
	fs.StringSlice("image", nil, "input image path or URL, repeatable")
	fs.Int("num-images", 0, "images to generate (1-4)")
	fs.String("aspect-ratio", "", "aspect ratio, e.g. 16:9")
	fs.String("model", "", "provider model override")
	fs.String("quality", "", "quality preset")
	fs.Int("duration", 0, "video length in seconds")
	fs.Bool("hd", false, "fetch the 1080p rendition once a video completes")
}

func upscaleFlags(fs *pflag.FlagSet) {
	fs.String("provider", model.ProviderUpscaler, "provider route")
	fs.StringSlice("image", nil, "image path or URL")
	fs.Int("scale", 2, "upscale factor: 2, 4 or 8")
}

func historyFlags(fs *pflag.FlagSet) {
	fs.String("provider", model.ProviderNanoBanana, "provider route")
	fs.Int("page", 1, "page number")
	fs.Int("limit", 20, "items per page")
	fs.String("delete", "", "delete the task with this id instead of listing")
}

func upgradeFlags(fs *pflag.FlagSet) {
	fs.String("provider", model.ProviderVeo3, "provider route")
	fs.String("task", "", "id of a completed video task")
}

func runGenerate(ctx context.Context, c *cli) error {
	provider := c.v.GetString("provider")
	req := studio.Request{
		Provider:    provider,
		Type:        model.TaskType(c.v.GetString("type")),
		Prompt:      c.v.GetString("prompt"),
		NumImages:   c.v.GetInt("num-images"),
		AspectRatio: c.v.GetString("aspect-ratio"),
		Model:       c.v.GetString("model"),
		Quality:     c.v.GetString("quality"),
		Duration:    c.v.GetInt("duration"),
	}
	if err := c.addImages(&req, c.v.GetStringSlice("image")); err != nil {
		return err
	}
	if req.Type == "" {
		req.Type = defaultType(provider, len(req.ImageURLs)+len(req.Files) > 0)
	}

	t, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	if err := printJSON(t); err != nil {
		return err
	}

	if c.v.GetBool("hd") && t.Type.IsVideo() {
		url, err := c.workspace.Upgrade1080p(ctx)
		if err != nil {
			return err
		}
		fmt.Println(url)
	}
	return nil
}

func runUpscale(ctx context.Context, c *cli) error {
	req := studio.Request{
		Provider: c.v.GetString("provider"),
		Type:     model.TaskTypeUpscale,
		Scale:    c.v.GetInt("scale"),
	}
	if err := c.addImages(&req, c.v.GetStringSlice("image")); err != nil {
		return err
	}

	t, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(t)
}

func runHistory(ctx context.Context, c *cli) error {
	provider := c.v.GetString("provider")
	if id := c.v.GetString("delete"); id != "" {
		if err := c.workspace.DeleteHistory(ctx, provider, id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "deleted %s\n", id)
		return nil
	}

	page, err := c.workspace.History(ctx, provider, c.v.GetInt("page"), c.v.GetInt("limit"))
	if err != nil {
		return err
	}
	return printJSON(page)
}

func runCredits(ctx context.Context, c *cli) error {
	credits, err := c.api.Credits(ctx)
	if err != nil {
		return err
	}
	return printJSON(credits)
}

func runUpgrade(ctx context.Context, c *cli) error {
	provider, id := c.v.GetString("provider"), c.v.GetString("task")
	if id == "" {
		return errors.New("--task is required")
	}

	r := task.NewUpgradeRetrier(printNotice)
	url, err := r.Run(ctx, func(ctx context.Context, attempt int) (string, error) {
		return c.api.Upgrade1080p(ctx, provider, id)
	})
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}

// execute starts req and blocks until the task is terminal or ctx is done.
func (c *cli) execute(ctx context.Context, req studio.Request) (*model.Task, error) {
	if err := c.guard.Refresh(ctx); err != nil {
		c.logger.Warn("could not load credits", zap.Error(err))
	}

	started, err := c.workspace.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "task %s submitted (%d credits), waiting for %s...\n", started.ID, started.CreditsUsed, started.Provider)

	if err := c.workspace.Wait(ctx); err != nil {
		c.workspace.Cancel()
		return nil, err
	}

	st := c.workspace.State()
	if st.Task == nil {
		return nil, studio.ErrTaskReplaced
	}
	if st.Status == model.TaskStatusFailed && st.Task.Error != nil {
		return st.Task, st.Task.Error
	}
	return st.Task, nil
}

// addImages splits --image values into remote URLs and local files.
func (c *cli) addImages(req *studio.Request, values []string) error {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			req.ImageURLs = append(req.ImageURLs, v)
			continue
		}
		f, err := studio.FileFromPath(v)
		if err != nil {
			return err
		}
		req.Files = append(req.Files, f)
	}
	return nil
}

func defaultType(provider string, hasImage bool) model.TaskType {
	switch provider {
	case model.ProviderUpscaler:
		return model.TaskTypeUpscale
	case model.ProviderVeo3, model.ProviderSora2:
		if hasImage {
			return model.TaskTypeImageToVideo
		}
		return model.TaskTypeTextToVideo
	}
	if hasImage {
		return model.TaskTypeImageToImage
	}
	return model.TaskTypeTextToImage
}

func printNotice(n task.Notice) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Kind, n.Message)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
