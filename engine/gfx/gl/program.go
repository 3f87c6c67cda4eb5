package glbackend

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/hubastard/terra/engine/gfx/driver"
)

type Shader struct {
	id    uint32
	stage driver.Stage
}

func (s *Shader) Stage() driver.Stage { return s.stage }

// NewShader compiles GLSL source. The entry point is always main.
func (d *Device) NewShader(stage driver.Stage, code []byte, _ string) (driver.Shader, error) {
	kind := uint32(gl.VERTEX_SHADER)
	if stage == driver.StageFragment {
		kind = gl.FRAGMENT_SHADER
	}
	id, err := makeShader(string(code)+"\x00", kind)
	if err != nil {
		return nil, err
	}
	return &Shader{id: id, stage: stage}, nil
}

func (s *Shader) Destroy() {
	if s.id != 0 {
		gl.DeleteShader(s.id)
		s.id = 0
	}
}

func makeShader(src string, shaderType uint32) (uint32, error) {
	sh := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	defer free()
	gl.ShaderSource(sh, 1, csrc, nil)
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen))
		gl.GetShaderInfoLog(sh, logLen, nil, gl.Str(log))
		gl.DeleteShader(sh)
		return 0, fmt.Errorf("shader compile error: %s", strings.TrimRight(log, "\x00"))
	}
	return sh, nil
}

func linkProgram(vs, fs uint32) (uint32, error) {
	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.LinkProgram(prog)
	gl.DetachShader(prog, vs)
	gl.DetachShader(prog, fs)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("program link error: %s", strings.TrimRight(log, "\x00"))
	}
	return prog, nil
}

func blockName(slot, binding int) string   { return fmt.Sprintf("Set%d_%d", slot, binding) }
func samplerName(slot, binding int) string { return fmt.Sprintf("uSet%d_%d", slot, binding) }

// bindingPoint is both the uniform binding point and the texture unit of
// binding b in set slot s.
func bindingPoint(slot, binding int) uint32 { return uint32(slot*bindingsPerSet + binding) }

type Pipeline struct {
	name    string
	program uint32
	vao     uint32
	layout  driver.VertexLayout
	sets    []driver.SetLayout
	blend   bool
}

func (d *Device) NewPipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	vs, ok1 := desc.Vertex.(*Shader)
	fs, ok2 := desc.Fragment.(*Shader)
	if !ok1 || !ok2 || vs.id == 0 || fs.id == 0 {
		return nil, fmt.Errorf("pipeline %q: shaders must be live GL shaders", desc.Name)
	}
	if desc.PushConstants.Size > pushSize {
		return nil, fmt.Errorf("pipeline %q: push constants of %d bytes exceed %d", desc.Name, desc.PushConstants.Size, pushSize)
	}
	for slot, s := range desc.Sets {
		for _, b := range s.Bindings {
			if b.Binding >= bindingsPerSet || bindingPoint(slot, b.Binding) >= pushBinding {
				return nil, fmt.Errorf("pipeline %q: set %d binding %d out of range", desc.Name, slot, b.Binding)
			}
		}
	}
	prog, err := linkProgram(vs.id, fs.id)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Name, err)
	}
	p := &Pipeline{name: desc.Name, program: prog, layout: desc.Layout, sets: desc.Sets, blend: desc.Blend}
	gl.GenVertexArrays(1, &p.vao)

	gl.UseProgram(prog)
	p.bindBlock("PushConstants", pushBinding)
	for slot, s := range desc.Sets {
		for _, b := range s.Bindings {
			switch b.Kind {
			case driver.BindUniformBuffer:
				p.bindBlock(blockName(slot, b.Binding), bindingPoint(slot, b.Binding))
			case driver.BindSampledImage:
				if loc := gl.GetUniformLocation(prog, gl.Str(samplerName(slot, b.Binding)+"\x00")); loc >= 0 {
					gl.Uniform1i(loc, int32(bindingPoint(slot, b.Binding)))
				}
			}
		}
	}
	gl.UseProgram(0)
	if err := glError("create pipeline " + desc.Name); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

// bindBlock assigns a uniform block to a binding point. Blocks the linker
// optimized away are ignored.
func (p *Pipeline) bindBlock(name string, point uint32) {
	if idx := gl.GetUniformBlockIndex(p.program, gl.Str(name+"\x00")); idx != gl.INVALID_INDEX {
		gl.UniformBlockBinding(p.program, idx, point)
	}
}

func (p *Pipeline) Destroy() {
	if p.vao != 0 {
		gl.DeleteVertexArrays(1, &p.vao)
		p.vao = 0
	}
	if p.program != 0 {
		gl.DeleteProgram(p.program)
		p.program = 0
	}
}

type uniformBinding struct {
	point  uint32
	buffer *Buffer
}

type textureBinding struct {
	unit  uint32
	image *Image
}

// DescriptorSet remembers what to bind; GL has no set objects. A sampler
// applies to every image of its set.
type DescriptorSet struct {
	uniforms []uniformBinding
	textures []textureBinding
	sampler  *Sampler
	freed    bool
}

func (d *Device) NewDescriptorSet(dp driver.Pipeline, slot int, res ...driver.Resource) (driver.DescriptorSet, error) {
	p := dp.(*Pipeline)
	if slot < 0 || slot >= len(p.sets) {
		return nil, fmt.Errorf("pipeline %q has no set slot %d", p.name, slot)
	}
	s := &DescriptorSet{}
	for _, r := range res {
		point := bindingPoint(slot, r.Binding)
		switch {
		case r.Buffer != nil:
			s.uniforms = append(s.uniforms, uniformBinding{point: point, buffer: r.Buffer.(*Buffer)})
		case r.Image != nil:
			s.textures = append(s.textures, textureBinding{unit: point, image: r.Image.(*Image)})
		case r.Sampler != nil:
			s.sampler = r.Sampler.(*Sampler)
		default:
			return nil, fmt.Errorf("descriptor binding %d has no resource", r.Binding)
		}
	}
	return s, nil
}

func (s *DescriptorSet) check() error {
	if s.freed {
		return destroyed("descriptor set", "bind")
	}
	for _, u := range s.uniforms {
		if u.buffer.id == 0 {
			return destroyed("buffer", "bind descriptor set")
		}
	}
	for _, t := range s.textures {
		if t.image.id == 0 {
			return destroyed("image", "bind descriptor set")
		}
	}
	if s.sampler != nil && s.sampler.id == 0 {
		return destroyed("sampler", "bind descriptor set")
	}
	return nil
}

func (s *DescriptorSet) bind() {
	for _, u := range s.uniforms {
		gl.BindBufferBase(gl.UNIFORM_BUFFER, u.point, u.buffer.id)
	}
	for _, t := range s.textures {
		gl.ActiveTexture(gl.TEXTURE0 + t.unit)
		gl.BindTexture(gl.TEXTURE_2D, t.image.id)
		if s.sampler != nil {
			gl.BindSampler(t.unit, s.sampler.id)
		}
	}
}

func (s *DescriptorSet) Destroy() { s.freed = true }
