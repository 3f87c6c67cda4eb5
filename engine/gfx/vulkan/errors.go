package vkbackend

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/hubastard/terra/engine/gfx/driver"
)

// check turns a Vulkan result into an error. Results with a meaning in the
// driver contract map to its sentinels so callers can use errors.Is.
func check(res vk.Result, what string) error {
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return fmt.Errorf("%s: %w", what, driver.ErrSuboptimal)
	case vk.ErrorOutOfDate:
		return fmt.Errorf("%s: %w", what, driver.ErrOutOfDate)
	case vk.ErrorDeviceLost:
		return fmt.Errorf("%s: %w", what, driver.ErrDeviceLost)
	case vk.Timeout:
		return fmt.Errorf("%s: %w", what, driver.ErrTimeout)
	}
	return fmt.Errorf("vulkan %s: %w (%d)", what, vk.Error(res), res)
}

var errDestroyed = errors.New("used after destroy")
