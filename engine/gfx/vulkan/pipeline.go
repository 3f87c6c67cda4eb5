package vkbackend

import (
	"encoding/binary"
	"fmt"
	"strings"

	vk "github.com/vulkan-go/vulkan"

	"github.com/hubastard/terra/engine/gfx/driver"
)

type Shader struct {
	dev    *Device
	handle vk.ShaderModule
	stage  driver.Stage
	entry  string
}

func (s *Shader) Stage() driver.Stage { return s.stage }

func (d *Device) NewShader(stage driver.Stage, code []byte, entry string) (driver.Shader, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V code of %d bytes", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	s := &Shader{dev: d, stage: stage, entry: entry}
	if err := check(vk.CreateShaderModule(d.device, &info, nil, &s.handle), "create shader module"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shader) Destroy() {
	if s.handle != vk.NullShaderModule {
		vk.DestroyShaderModule(s.dev.device, s.handle, nil)
		s.handle = vk.NullShaderModule
	}
}

func stageFlags(s driver.StageFlags) vk.ShaderStageFlags {
	var f vk.ShaderStageFlags
	if s&driver.VertexBit != 0 {
		f |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if s&driver.FragmentBit != 0 {
		f |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	return f
}

func descriptorType(k driver.BindingKind) vk.DescriptorType {
	switch k {
	case driver.BindSampledImage:
		return vk.DescriptorTypeSampledImage
	case driver.BindSampler:
		return vk.DescriptorTypeSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func attribFormat(components int) (vk.Format, error) {
	switch components {
	case 1:
		return vk.FormatR32Sfloat, nil
	case 2:
		return vk.FormatR32g32Sfloat, nil
	case 3:
		return vk.FormatR32g32b32Sfloat, nil
	case 4:
		return vk.FormatR32g32b32a32Sfloat, nil
	}
	return vk.FormatUndefined, fmt.Errorf("vertex attribute with %d components", components)
}

// layoutKey identifies a set layout by its bindings.
func layoutKey(l driver.SetLayout) string {
	var b strings.Builder
	for _, x := range l.Bindings {
		fmt.Fprintf(&b, "%d:%d:%d;", x.Binding, x.Kind, x.Stages)
	}
	return b.String()
}

// setLayout returns the shared layout for l, creating it on first use.
func (d *Device) setLayout(l driver.SetLayout) (vk.DescriptorSetLayout, error) {
	key := layoutKey(l)
	if h, ok := d.setLayouts[key]; ok {
		return h, nil
	}
	bindings := make([]vk.DescriptorSetLayoutBinding, len(l.Bindings))
	for i, b := range l.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(b.Binding),
			DescriptorType:  descriptorType(b.Kind),
			DescriptorCount: 1,
			StageFlags:      stageFlags(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var h vk.DescriptorSetLayout
	if err := check(vk.CreateDescriptorSetLayout(d.device, &info, nil, &h), "create set layout"); err != nil {
		return vk.NullDescriptorSetLayout, err
	}
	d.setLayouts[key] = h
	return h, nil
}

type Pipeline struct {
	dev     *Device
	name    string
	handle  vk.Pipeline
	layout  vk.PipelineLayout
	sets    []driver.SetLayout
	layouts []vk.DescriptorSetLayout
	push    vk.ShaderStageFlags
}

func (d *Device) NewPipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	vs, ok1 := desc.Vertex.(*Shader)
	fs, ok2 := desc.Fragment.(*Shader)
	pass, ok3 := desc.RenderPass.(*RenderPass)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("pipeline %q: shaders and render pass must come from this device", desc.Name)
	}

	p := &Pipeline{dev: d, name: desc.Name, sets: desc.Sets, push: stageFlags(desc.PushConstants.Stages)}
	for _, s := range desc.Sets {
		h, err := d.setLayout(s)
		if err != nil {
			return nil, err
		}
		p.layouts = append(p.layouts, h)
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(p.layouts)),
		PSetLayouts:    p.layouts,
	}
	if desc.PushConstants.Size > 0 {
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: p.push,
			Size:       uint32(desc.PushConstants.Size),
		}}
	}
	if err := check(vk.CreatePipelineLayout(d.device, &layoutInfo, nil, &p.layout), "create pipeline layout"); err != nil {
		return nil, err
	}

	attrs := make([]vk.VertexInputAttributeDescription, len(desc.Layout.Attributes))
	for i, a := range desc.Layout.Attributes {
		f, err := attribFormat(a.Components)
		if err != nil {
			p.Destroy()
			return nil, err
		}
		attrs[i] = vk.VertexInputAttributeDescription{Location: uint32(a.Location), Format: f, Offset: uint32(a.Offset)}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Stride:    uint32(desc.Layout.Stride),
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}
	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	dynamic := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}
	blend := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if desc.Blend {
		blend.BlendEnable = vk.True
		blend.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blend.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blend.ColorBlendOp = vk.BlendOpAdd
		blend.SrcAlphaBlendFactor = vk.BlendFactorOne
		blend.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blend.AlphaBlendOp = vk.BlendOpAdd
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: 2,
		PStages: []vk.PipelineShaderStageCreateInfo{
			{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageVertexBit, Module: vs.handle, PName: vs.entry + "\x00"},
			{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageFragmentBit, Module: fs.handle, PName: fs.entry + "\x00"},
		},
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &raster,
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments:    []vk.PipelineColorBlendAttachmentState{blend},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamic)),
			PDynamicStates:    dynamic,
		},
		Layout:            p.layout,
		RenderPass:        pass.handle,
		BasePipelineIndex: -1,
	}
	pipes := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(d.device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipes)
	if err := check(res, "create pipeline "+desc.Name); err != nil {
		p.Destroy()
		return nil, err
	}
	p.handle = pipes[0]
	return p, nil
}

// Destroy releases the pipeline and its layout. Set layouts belong to the
// device.
func (p *Pipeline) Destroy() {
	if p.handle != vk.NullPipeline {
		vk.DestroyPipeline(p.dev.device, p.handle, nil)
		p.handle = vk.NullPipeline
	}
	if p.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(p.dev.device, p.layout, nil)
		p.layout = vk.NullPipelineLayout
	}
}

type DescriptorSet struct {
	dev    *Device
	handle vk.DescriptorSet
}

func (d *Device) NewDescriptorSet(dp driver.Pipeline, slot int, res ...driver.Resource) (driver.DescriptorSet, error) {
	p := dp.(*Pipeline)
	if slot < 0 || slot >= len(p.layouts) {
		return nil, fmt.Errorf("pipeline %q has no set slot %d", p.name, slot)
	}
	alloc := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{p.layouts[slot]},
	}
	s := &DescriptorSet{dev: d}
	if err := check(vk.AllocateDescriptorSets(d.device, &alloc, &s.handle), "allocate descriptor set"); err != nil {
		return nil, err
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(res))
	for _, r := range res {
		w := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.handle,
			DstBinding:      uint32(r.Binding),
			DescriptorCount: 1,
		}
		switch {
		case r.Buffer != nil:
			w.DescriptorType = vk.DescriptorTypeUniformBuffer
			w.PBufferInfo = []vk.DescriptorBufferInfo{{Buffer: r.Buffer.(*Buffer).handle, Range: vk.DeviceSize(vk.WholeSize)}}
		case r.Image != nil:
			w.DescriptorType = vk.DescriptorTypeSampledImage
			w.PImageInfo = []vk.DescriptorImageInfo{{ImageView: r.Image.(*Image).view, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}}
		case r.Sampler != nil:
			w.DescriptorType = vk.DescriptorTypeSampler
			w.PImageInfo = []vk.DescriptorImageInfo{{Sampler: r.Sampler.(*Sampler).handle}}
		default:
			s.Destroy()
			return nil, fmt.Errorf("descriptor binding %d has no resource", r.Binding)
		}
		writes = append(writes, w)
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
	return s, nil
}

func (s *DescriptorSet) Destroy() {
	if s.handle != vk.DescriptorSet(vk.NullHandle) {
		vk.FreeDescriptorSets(s.dev.device, s.dev.descPool, 1, []vk.DescriptorSet{s.handle})
		s.handle = vk.DescriptorSet(vk.NullHandle)
	}
}
