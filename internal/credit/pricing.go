package credit

import (
	"fmt"

	"github.com/genstudio/api/internal/model"
)

// Pricing maps a task type to its credit cost per unit.
type Pricing map[model.TaskType]int

// DefaultPricing is used when no pricing is configured.
func DefaultPricing() Pricing {
	return Pricing{
		model.TaskTypeTextToImage:  2,
		model.TaskTypeImageToImage: 2,
		model.TaskTypeTextToVideo:  30,
		model.TaskTypeImageToVideo: 30,
		model.TaskTypeUpscale:      1,
	}
}

// Cost returns the credits a submission consumes. Generated images are
// charged per requested image.
func (p Pricing) Cost(t model.TaskType, numImages int) (int, error) {
	unit, ok := p[t]
	if !ok {
		return 0, fmt.Errorf("no price for task type %q", t)
	}
	if t == model.TaskTypeTextToImage || t == model.TaskTypeImageToImage {
		if numImages < 1 {
			numImages = 1
		}
		return unit * numImages, nil
	}
	return unit, nil
}

// Copy returns an independent copy safe to hand to callers.
func (p Pricing) Copy() Pricing {
	out := make(Pricing, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
