package gpuapi

import "testing"

func TestRequiredFeaturesListsSpecRequiredSet(t *testing.T) {
	want := []string{
		"samplerFilterMinmax",
		"descriptorBindingPartiallyBound",
		"runtimeDescriptorArray",
		"bufferDeviceAddress",
		"hostQueryReset",
		"multiview",
		"shaderBufferFloat32AtomicAdd",
		"geometryShader",
		"samplerAnisotropy",
	}
	if len(RequiredFeatures) != len(want) {
		t.Fatalf("expected %d required features, got %d", len(want), len(RequiredFeatures))
	}
	for i, f := range want {
		if RequiredFeatures[i] != f {
			t.Fatalf("expected feature %d to be %q, got %q", i, f, RequiredFeatures[i])
		}
	}
}
