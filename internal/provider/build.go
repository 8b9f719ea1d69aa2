package provider

import (
	"go.uber.org/zap"

	"github.com/genstudio/api/internal/config"
	"github.com/genstudio/api/internal/model"
)

// FromConfig registers every known provider. Providers without an API key
// are replaced by a Mock so development works offline.
func FromConfig(cfg config.ProvidersConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := NewRegistry()

	add := func(name string, build func(config.ProviderConfig, *zap.Logger) Provider, types ...model.TaskType) {
		pc, _ := cfg.ByName(name)
		if pc.APIKey == "" {
			logger.Info("provider not configured, using mock", zap.String("provider", name))
			reg.Register(NewMock(name, types...), pc.PollInterval)
			return
		}
		reg.Register(build(pc, logger), pc.PollInterval)
	}

	add(model.ProviderNanoBanana, func(pc config.ProviderConfig, l *zap.Logger) Provider { return NewNanoBanana(pc, l) },
		model.TaskTypeTextToImage, model.TaskTypeImageToImage)
	add(model.ProviderSora2, func(pc config.ProviderConfig, l *zap.Logger) Provider { return NewSora2(pc, l) },
		model.TaskTypeTextToVideo, model.TaskTypeImageToVideo)
	add(model.ProviderVeo3, func(pc config.ProviderConfig, l *zap.Logger) Provider { return NewVeo3(pc, l) },
		model.TaskTypeTextToVideo, model.TaskTypeImageToVideo)
	add(model.ProviderUpscaler, func(pc config.ProviderConfig, l *zap.Logger) Provider { return NewUpscaler(pc, l) },
		model.TaskTypeUpscale)

	return reg
}
