package driver

import "fmt"

// Extent is a size in pixels.
type Extent struct {
	Width, Height int
}

// Zero reports whether either side is empty (a minimized window, a
// resize gesture passing through zero).
func (e Extent) Zero() bool { return e.Width <= 0 || e.Height <= 0 }

func (e Extent) String() string { return fmt.Sprintf("%dx%d", e.Width, e.Height) }

// Viewport is a rectangle in framebuffer pixels. The scissor follows it.
type Viewport struct {
	X, Y          float32
	Width, Height float32
}

// FullViewport covers the whole extent.
func FullViewport(e Extent) Viewport {
	return Viewport{Width: float32(e.Width), Height: float32(e.Height)}
}

type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8
	FormatRGBA8SRGB
	FormatBGRA8
	FormatBGRA8SRGB
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatRGBA8SRGB:
		return "rgba8-srgb"
	case FormatBGRA8:
		return "bgra8"
	case FormatBGRA8SRGB:
		return "bgra8-srgb"
	default:
		return "undefined"
	}
}

type BufferUsage int

const (
	UsageVertex BufferUsage = iota
	UsageIndex
	UsageUniform
)

func (u BufferUsage) String() string {
	switch u {
	case UsageVertex:
		return "vertex"
	case UsageIndex:
		return "index"
	case UsageUniform:
		return "uniform"
	default:
		return fmt.Sprintf("usage(%d)", int(u))
	}
}

type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

// StageFlags is a set of shader stages.
type StageFlags int

const (
	VertexBit StageFlags = 1 << iota
	FragmentBit
)

type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

type AddressMode int

const (
	AddressClampToBorder AddressMode = iota
	AddressClampToEdge
	AddressRepeat
)

// ParseAddressMode maps a config string to an AddressMode.
func ParseAddressMode(s string) (AddressMode, error) {
	switch s {
	case "", "clamp-to-border":
		return AddressClampToBorder, nil
	case "clamp-to-edge":
		return AddressClampToEdge, nil
	case "repeat":
		return AddressRepeat, nil
	}
	return 0, fmt.Errorf("unknown sampler address mode %q", s)
}

type SamplerDesc struct {
	Min, Mag Filter
	Address  AddressMode
}

// VertexAttrib is a float32 vector attribute.
type VertexAttrib struct {
	Location   int
	Components int // 1..4 float32
	Offset     int // bytes
}

type VertexLayout struct {
	Stride     int // bytes
	Attributes []VertexAttrib
}

type BindingKind int

const (
	BindUniformBuffer BindingKind = iota
	BindSampledImage
	BindSampler
)

type LayoutBinding struct {
	Binding int
	Kind    BindingKind
	Stages  StageFlags
}

// SetLayout describes the bindings of one descriptor set slot.
type SetLayout struct {
	Bindings []LayoutBinding
}

type PushConstantRange struct {
	Stages StageFlags
	Size   int // bytes, offset 0
}

type PipelineDesc struct {
	Name          string
	Vertex        Shader
	Fragment      Shader
	Layout        VertexLayout
	Sets          []SetLayout // index = slot
	PushConstants PushConstantRange
	RenderPass    RenderPass
	Blend         bool
}

// Resource is one descriptor write: exactly one of Buffer, Image, Sampler
// is set, matching the kind of the binding.
type Resource struct {
	Binding int
	Buffer  Buffer
	Image   Image
	Sampler Sampler
}

type ShaderFormat int

const (
	ShaderSPIRV ShaderFormat = iota
	ShaderGLSL
)

func (f ShaderFormat) String() string {
	if f == ShaderGLSL {
		return "glsl"
	}
	return "spirv"
}

type DeviceType int

const (
	DeviceOther DeviceType = iota
	DeviceCPU
	DeviceVirtual
	DeviceIntegrated
	DeviceDiscrete
)

func (t DeviceType) String() string {
	switch t {
	case DeviceCPU:
		return "cpu"
	case DeviceVirtual:
		return "virtual"
	case DeviceIntegrated:
		return "integrated"
	case DeviceDiscrete:
		return "discrete"
	default:
		return "other"
	}
}

// Info describes the device and the conventions of its backend.
type Info struct {
	Backend    string
	Vendor     string
	Renderer   string
	Version    string
	DeviceType DeviceType

	ShaderFormat ShaderFormat
	// YDown is set when clip-space +Y points down the screen (Vulkan).
	YDown bool
	// DepthZeroToOne is set when clip-space depth spans [0, 1] rather than
	// [-1, 1].
	DepthZeroToOne bool
}
