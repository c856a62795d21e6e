package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		importer     string
		wantType     string
		wantCategory string
	}{
		{
			name:         "shader file",
			path:         "Assets/Shaders/Water.shader",
			wantType:     ".shader",
			wantCategory: "Rendering",
		},
		{
			name:         "png texture",
			path:         "Assets/Textures/grass.png",
			wantType:     ".png",
			wantCategory: "Textures",
		},
		{
			name:         "uppercase extension matches",
			path:         "Assets/Textures/UI_Icon.PNG",
			wantType:     ".png",
			wantCategory: "Textures",
		},
		{
			name:         "prefab",
			path:         "Assets/Prefabs/Enemy.prefab",
			wantType:     ".prefab",
			wantCategory: "Prefabs",
		},
		{
			name:         "unknown extension keeps raw ext",
			path:         "Assets/Data/table.bytes",
			wantType:     ".bytes",
			wantCategory: "Other",
		},
		{
			name:         "no extension",
			path:         "Assets/Folder",
			wantType:     "no-extension",
			wantCategory: "Other",
		},
		{
			name:         "texture importer overrides category",
			path:         "Assets/Data/lookup.bytes",
			importer:     "TextureImporter",
			wantType:     ".bytes",
			wantCategory: "Textures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotCategory := Categorize(tt.path, tt.importer)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantCategory, gotCategory)
		})
	}
}

func TestInferImporter(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "fbx model", path: "Assets/Models/Tree.fbx", want: "FBXImporter"},
		{name: "png texture", path: "Assets/tex.png", want: "TextureImporter"},
		{name: "material", path: "Assets/Materials/Wood.mat", want: "NativeFormatImporter"},
		{name: "video", path: "Assets/Movies/intro.mp4", want: "VideoClipImporter"},
		{name: "audio", path: "Assets/Audio/hit.wav", want: "AudioImporter"},
		{name: "unknown", path: "Assets/Data/level.bin", want: UnknownImporter},
		{name: "no extension", path: "Assets/Folder", want: UnknownImporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferImporter(tt.path))
		})
	}
}
