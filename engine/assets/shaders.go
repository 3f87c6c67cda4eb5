package assets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"

	"github.com/gogpu/naga"

	"github.com/hubastard/terra/engine/gfx/driver"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic = 0x07230203

// Entry points shared by the WGSL sources and the SPIR-V built from them.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// ShaderProgram is a vertex/fragment pair in the format a backend consumes.
type ShaderProgram struct {
	Name          string
	Format        driver.ShaderFormat
	Vertex        []byte
	Fragment      []byte
	VertexEntry   string
	FragmentEntry string
}

// ShaderLibrary resolves shaders by logical name inside a directory:
//
//	<name>.spv                       SPIR-V with both entry points
//	<name>.wgsl                      compiled to SPIR-V when no .spv exists
//	<name>.vert.glsl, <name>.frag.glsl  OpenGL
type ShaderLibrary struct {
	fsys    fs.FS
	compile func(string) ([]byte, error)
}

func NewShaderLibrary(fsys fs.FS) *ShaderLibrary {
	return &ShaderLibrary{fsys: fsys, compile: naga.Compile}
}

// Load returns the program called name for the given format. A missing or
// malformed file is reported with its path.
func (l *ShaderLibrary) Load(name string, format driver.ShaderFormat) (ShaderProgram, error) {
	if format == driver.ShaderGLSL {
		return l.loadGLSL(name)
	}
	return l.loadSPIRV(name)
}

func (l *ShaderLibrary) loadSPIRV(name string) (ShaderProgram, error) {
	path := name + ".spv"
	code, err := fs.ReadFile(l.fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		src := name + ".wgsl"
		wgsl, werr := fs.ReadFile(l.fsys, src)
		if werr != nil {
			return ShaderProgram{}, fmt.Errorf("shader %q: neither %s nor %s: %w", name, path, src, werr)
		}
		if code, err = l.compile(string(wgsl)); err != nil {
			return ShaderProgram{}, fmt.Errorf("shader %q: compile %s: %w", name, src, err)
		}
		path = src
	} else if err != nil {
		return ShaderProgram{}, fmt.Errorf("shader %q: %w", name, err)
	}
	if err := CheckSPIRV(code); err != nil {
		return ShaderProgram{}, fmt.Errorf("shader %q: %s: %w", name, path, err)
	}
	return ShaderProgram{
		Name:          name,
		Format:        driver.ShaderSPIRV,
		Vertex:        code,
		Fragment:      code,
		VertexEntry:   VertexEntry,
		FragmentEntry: FragmentEntry,
	}, nil
}

func (l *ShaderLibrary) loadGLSL(name string) (ShaderProgram, error) {
	p := ShaderProgram{Name: name, Format: driver.ShaderGLSL, VertexEntry: "main", FragmentEntry: "main"}
	for _, f := range []struct {
		path string
		dst  *[]byte
	}{
		{name + ".vert.glsl", &p.Vertex},
		{name + ".frag.glsl", &p.Fragment},
	} {
		b, err := fs.ReadFile(l.fsys, f.path)
		if err != nil {
			return ShaderProgram{}, fmt.Errorf("shader %q: %w", name, err)
		}
		if len(b) == 0 {
			return ShaderProgram{}, fmt.Errorf("shader %q: %s is empty", name, f.path)
		}
		*f.dst = b
	}
	return p, nil
}

// CheckSPIRV rejects code that cannot be a SPIR-V module.
func CheckSPIRV(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return fmt.Errorf("spir-v length %d is not a whole module", len(code))
	}
	if m := binary.LittleEndian.Uint32(code); m != SPIRVMagic {
		return fmt.Errorf("bad spir-v magic %#08x", m)
	}
	return nil
}
