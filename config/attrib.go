// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import "fmt"

// Attrib is an EGL config attribute name.
type Attrib int32

// EGL attribute names and values used by the catalog.
const (
	BufferSize           Attrib = 0x3020
	AlphaSize            Attrib = 0x3021
	BlueSize             Attrib = 0x3022
	GreenSize            Attrib = 0x3023
	RedSize              Attrib = 0x3024
	DepthSize            Attrib = 0x3025
	StencilSize          Attrib = 0x3026
	ConfigCaveat         Attrib = 0x3027
	ConfigIDAttrib       Attrib = 0x3028
	Level                Attrib = 0x3029
	MaxPbufferHeight     Attrib = 0x302A
	MaxPbufferPixels     Attrib = 0x302B
	MaxPbufferWidth      Attrib = 0x302C
	NativeRenderable     Attrib = 0x302D
	NativeVisualID       Attrib = 0x302E
	NativeVisualType     Attrib = 0x302F
	Samples              Attrib = 0x3031
	SampleBuffers        Attrib = 0x3032
	SurfaceType          Attrib = 0x3033
	TransparentType      Attrib = 0x3034
	TransparentBlueValue Attrib = 0x3035
	TransparentGreenVal  Attrib = 0x3036
	TransparentRedValue  Attrib = 0x3037
	None                 Attrib = 0x3038
	BindToTextureRGB     Attrib = 0x3039
	BindToTextureRGBA    Attrib = 0x303A
	MinSwapInterval      Attrib = 0x303B
	MaxSwapInterval      Attrib = 0x303C
	LuminanceSize        Attrib = 0x303D
	AlphaMaskSize        Attrib = 0x303E
	ColorBufferType      Attrib = 0x303F
	RenderableType       Attrib = 0x3040
	Conformant           Attrib = 0x3042
	RecordableAndroid    Attrib = 0x3142
)

// Attribute values.
const (
	PbufferBit = 0x0001
	WindowBit  = 0x0004

	// DontCare makes an attribute match anything.
	DontCare = -1
)

// Attributes is the fixed attribute vector every config carries, in order.
var Attributes = [...]Attrib{
	DepthSize,
	StencilSize,
	RenderableType,
	SurfaceType,
	ConfigIDAttrib,
	BufferSize,
	AlphaSize,
	BlueSize,
	GreenSize,
	RedSize,
	ConfigCaveat,
	Level,
	MaxPbufferHeight,
	MaxPbufferPixels,
	MaxPbufferWidth,
	NativeRenderable,
	NativeVisualID,
	NativeVisualType,
	Samples,
	SampleBuffers,
	TransparentType,
	TransparentBlueValue,
	TransparentGreenVal,
	TransparentRedValue,
	BindToTextureRGB,
	BindToTextureRGBA,
	MinSwapInterval,
	MaxSwapInterval,
	LuminanceSize,
	AlphaMaskSize,
	ColorBufferType,
	RecordableAndroid,
	Conformant,
}

// NumAttributes is the length of a config attribute vector.
const NumAttributes = len(Attributes)

// Index returns the position of a in the attribute vector, or -1.
func (a Attrib) Index() int {
	for i, x := range Attributes {
		if x == a {
			return i
		}
	}
	return -1
}

var attribNames = map[Attrib]string{
	BufferSize:           "EGL_BUFFER_SIZE",
	AlphaSize:            "EGL_ALPHA_SIZE",
	BlueSize:             "EGL_BLUE_SIZE",
	GreenSize:            "EGL_GREEN_SIZE",
	RedSize:              "EGL_RED_SIZE",
	DepthSize:            "EGL_DEPTH_SIZE",
	StencilSize:          "EGL_STENCIL_SIZE",
	ConfigCaveat:         "EGL_CONFIG_CAVEAT",
	ConfigIDAttrib:       "EGL_CONFIG_ID",
	Level:                "EGL_LEVEL",
	MaxPbufferHeight:     "EGL_MAX_PBUFFER_HEIGHT",
	MaxPbufferPixels:     "EGL_MAX_PBUFFER_PIXELS",
	MaxPbufferWidth:      "EGL_MAX_PBUFFER_WIDTH",
	NativeRenderable:     "EGL_NATIVE_RENDERABLE",
	NativeVisualID:       "EGL_NATIVE_VISUAL_ID",
	NativeVisualType:     "EGL_NATIVE_VISUAL_TYPE",
	Samples:              "EGL_SAMPLES",
	SampleBuffers:        "EGL_SAMPLE_BUFFERS",
	SurfaceType:          "EGL_SURFACE_TYPE",
	TransparentType:      "EGL_TRANSPARENT_TYPE",
	TransparentBlueValue: "EGL_TRANSPARENT_BLUE_VALUE",
	TransparentGreenVal:  "EGL_TRANSPARENT_GREEN_VALUE",
	TransparentRedValue:  "EGL_TRANSPARENT_RED_VALUE",
	None:                 "EGL_NONE",
	BindToTextureRGB:     "EGL_BIND_TO_TEXTURE_RGB",
	BindToTextureRGBA:    "EGL_BIND_TO_TEXTURE_RGBA",
	MinSwapInterval:      "EGL_MIN_SWAP_INTERVAL",
	MaxSwapInterval:      "EGL_MAX_SWAP_INTERVAL",
	LuminanceSize:        "EGL_LUMINANCE_SIZE",
	AlphaMaskSize:        "EGL_ALPHA_MASK_SIZE",
	ColorBufferType:      "EGL_COLOR_BUFFER_TYPE",
	RenderableType:       "EGL_RENDERABLE_TYPE",
	Conformant:           "EGL_CONFORMANT",
	RecordableAndroid:    "EGL_RECORDABLE_ANDROID",
}

// String returns the EGL name of the attribute.
func (a Attrib) String() string {
	if s, ok := attribNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Attrib(%#x)", int32(a))
}

// ReferenceConfigs is the config list of the reference device, one row per
// config, values in Attributes order. Row i has CONFIG_ID i+1.
var ReferenceConfigs = [...][NumAttributes]int32{
	{0, 0, 69, 5, 1, 32, 8, 8, 8, 8, 12344, 0, 4096, 0, 4096, 1, 1, 1, 0, 0, 12344, 0, 0, 0, 0, 1, 0, 1, 0, 0, 12430, 1, 69},
	{24, 8, 69, 5, 2, 32, 8, 8, 8, 8, 12344, 0, 4096, 0, 4096, 1, 1, 1, 0, 0, 12344, 0, 0, 0, 0, 1, 0, 1, 0, 0, 12430, 1, 69},
	{24, 8, 69, 5, 3, 32, 8, 8, 8, 8, 12344, 0, 4096, 0, 4096, 1, 1, 1, 4, 1, 12344, 0, 0, 0, 0, 1, 0, 1, 0, 0, 12430, 1, 69},
	{0, 0, 69, 5, 4, 24, 0, 8, 8, 8, 12344, 0, 4096, 0, 4096, 1, 2, 2, 0, 0, 12344, 0, 0, 0, 0, 0, 0, 1, 0, 0, 12430, 1, 69},
	{24, 8, 69, 5, 5, 24, 0, 8, 8, 8, 12344, 0, 4096, 0, 4096, 1, 2, 2, 0, 0, 12344, 0, 0, 0, 0, 0, 0, 1, 0, 0, 12430, 1, 69},
	{24, 8, 69, 5, 6, 24, 0, 8, 8, 8, 12344, 0, 4096, 0, 4096, 1, 2, 2, 4, 1, 12344, 0, 0, 0, 0, 0, 0, 1, 0, 0, 12430, 1, 69},
	{0, 0, 69, 5, 7, 16, 0, 5, 6, 5, 12344, 0, 4096, 0, 4096, 1, 4, 4, 0, 0, 12344, 0, 0, 0, 0, 0, 0, 1, 0, 0, 12430, 1, 69},
	{24, 8, 69, 5, 8, 16, 0, 5, 6, 5, 12344, 0, 4096, 0, 4096, 1, 4, 4, 0, 0, 12344, 0, 0, 0, 0, 0, 0, 1, 0, 0, 12430, 1, 69},
	{24, 8, 69, 5, 9, 16, 0, 5, 6, 5, 12344, 0, 4096, 0, 4096, 1, 4, 4, 4, 1, 12344, 0, 0, 0, 0, 0, 0, 1, 0, 0, 12430, 1, 69},
}
