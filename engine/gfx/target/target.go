// Package target owns the presentation target: the swapchain, its render
// pass and one framebuffer per swapchain image. The set is only ever replaced
// as a unit by Recreate.
package target

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hubastard/terra/engine/gfx/driver"
)

// ErrRetryLater is returned by Recreate when the surface cannot take a
// swapchain right now (zero-sized or minimized window). The previous target
// set is left untouched.
var ErrRetryLater = errors.New("presentation target unavailable, retry later")

// Frame is what the renderer needs to record into one swapchain image.
type Frame struct {
	Index       int
	Framebuffer driver.Framebuffer
	Pass        driver.RenderPass
	Extent      driver.Extent
	Viewport    driver.Viewport
}

type Manager struct {
	dev driver.Device
	log *slog.Logger

	swapchain    driver.Swapchain
	pass         driver.RenderPass
	framebuffers []driver.Framebuffer
	extent       driver.Extent
	viewport     driver.Viewport
	generation   int
}

// New builds the first target set. Unlike Recreate, an unusable extent here
// is an error: there is nothing to fall back to.
func New(dev driver.Device, extent driver.Extent, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{dev: dev, log: log}
	if err := m.Recreate(extent); err != nil {
		return nil, fmt.Errorf("create presentation target %s: %w", extent, err)
	}
	return m, nil
}

// Recreate replaces the swapchain and everything derived from it.
func (m *Manager) Recreate(extent driver.Extent) error {
	if extent.Zero() {
		return ErrRetryLater
	}
	if err := m.dev.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle before recreate: %w", err)
	}

	sc, err := m.dev.NewSwapchain(extent, m.swapchain)
	if errors.Is(err, driver.ErrExtentUnsupported) {
		return ErrRetryLater
	}
	if err != nil {
		return fmt.Errorf("create swapchain: %w", err)
	}

	pass := m.pass
	if pass == nil || pass.Format() != sc.Format() {
		pass, err = m.dev.NewRenderPass(sc.Format())
		if err != nil {
			sc.Destroy()
			return fmt.Errorf("create render pass: %w", err)
		}
	}

	fbs := make([]driver.Framebuffer, 0, sc.ImageCount())
	for i := 0; i < sc.ImageCount(); i++ {
		fb, err := m.dev.NewFramebuffer(pass, sc, i)
		if err != nil {
			for _, f := range fbs {
				f.Destroy()
			}
			if pass != m.pass {
				pass.Destroy()
			}
			sc.Destroy()
			return fmt.Errorf("create framebuffer %d: %w", i, err)
		}
		fbs = append(fbs, fb)
	}

	for _, f := range m.framebuffers {
		f.Destroy()
	}
	if m.swapchain != nil {
		m.swapchain.Destroy()
	}
	if m.pass != nil && m.pass != pass {
		m.pass.Destroy()
	}

	m.swapchain = sc
	m.pass = pass
	m.framebuffers = fbs
	m.extent = sc.Extent()
	m.viewport = driver.FullViewport(m.extent)
	m.generation++

	m.log.Debug("presentation target recreated",
		"extent", m.extent, "format", sc.Format(), "images", sc.ImageCount(), "generation", m.generation)
	return nil
}

// Acquire returns the next image index. See driver.Swapchain.Acquire for
// the transient errors.
func (m *Manager) Acquire(signal driver.Semaphore) (int, error) {
	return m.swapchain.Acquire(signal)
}

func (m *Manager) Frame(i int) Frame {
	return Frame{
		Index:       i,
		Framebuffer: m.framebuffers[i],
		Pass:        m.pass,
		Extent:      m.extent,
		Viewport:    m.viewport,
	}
}

func (m *Manager) Framebuffer(i int) driver.Framebuffer { return m.framebuffers[i] }
func (m *Manager) Swapchain() driver.Swapchain          { return m.swapchain }
func (m *Manager) RenderPass() driver.RenderPass        { return m.pass }
func (m *Manager) Extent() driver.Extent                { return m.extent }
func (m *Manager) Viewport() driver.Viewport            { return m.viewport }
func (m *Manager) ImageCount() int                      { return len(m.framebuffers) }

// Generation increases on every successful Recreate.
func (m *Manager) Generation() int { return m.generation }

func (m *Manager) Destroy() {
	for _, f := range m.framebuffers {
		f.Destroy()
	}
	m.framebuffers = nil
	if m.swapchain != nil {
		m.swapchain.Destroy()
		m.swapchain = nil
	}
	if m.pass != nil {
		m.pass.Destroy()
		m.pass = nil
	}
}
