// Package classify maps asset paths to display types, category labels and
// inferred importer names. All lookups are static table lookups; extensions
// match case-insensitively.
package classify

import (
	"path"
	"strings"
)

// UnknownImporter is reported when neither the log nor the extension tables
// identify the importer.
const UnknownImporter = "UnknownImporter"

// DefaultImporter is the generic importer used for folders and unrecognized
// files.
const DefaultImporter = "DefaultImporter"

var displayTypes = map[string]string{
	".shader": ".shader", ".compute": ".compute", ".cginc": ".cginc", ".hlsl": ".hlsl",
	".png": ".png", ".jpg": ".jpg", ".jpeg": ".jpeg", ".tga": ".tga", ".psd": ".psd",
	".exr": ".exr", ".hdr": ".hdr", ".tif": ".tif", ".tiff": ".tiff", ".bmp": ".bmp",
	".fbx": ".fbx", ".obj": ".obj", ".blend": ".blend",
	".mat": ".mat", ".prefab": ".prefab", ".unity": ".unity", ".asset": ".asset",
	".controller": ".controller", ".anim": ".anim", ".physicmaterial": ".physicmaterial",
	".cs": ".cs", ".js": ".js", ".dll": ".dll", ".asmdef": ".asmdef",
	".ttf": ".ttf", ".otf": ".otf",
	".wav": ".wav", ".mp3": ".mp3", ".ogg": ".ogg",
}

var categories = map[string]string{
	".shader": "Rendering", ".compute": "Rendering", ".cginc": "Rendering", ".hlsl": "Rendering",
	".png": "Textures", ".jpg": "Textures", ".jpeg": "Textures", ".tga": "Textures",
	".psd": "Textures", ".exr": "Textures", ".hdr": "Textures", ".tif": "Textures",
	".tiff": "Textures", ".bmp": "Textures",
	".mat": "Materials", ".prefab": "Prefabs", ".unity": "Scenes",
	".fbx": "3D Models", ".obj": "3D Models", ".blend": "3D Models",
	".cs": "Scripts", ".js": "Scripts",
	".dll": "Assemblies", ".asmdef": "Assemblies",
	".asset": "Scriptable Objects",
	".controller": "Animation", ".anim": "Animation",
	".physicmaterial": "Physics",
	".ttf": "Fonts", ".otf": "Fonts",
	".wav": "Audio", ".mp3": "Audio", ".ogg": "Audio",
}

var importers = map[string]string{
	".fbx":  "FBXImporter",
	".png":  "TextureImporter",
	".jpg":  "TextureImporter",
	".jpeg": "TextureImporter",
	".exr":  "TextureImporter",
	".tga":  "TextureImporter",
	".hdr":  "TextureImporter",
	".tif":  "TextureImporter",
	".tiff": "TextureImporter",
	".bmp":  "TextureImporter",
	".mat":  "NativeFormatImporter",
	".prefab": "PrefabImporter",
	".anim":   "NativeFormatImporter",
	".controller": "NativeFormatImporter",
	".mp4": "VideoClipImporter", ".mov": "VideoClipImporter", ".avi": "VideoClipImporter",
	".webm": "VideoClipImporter", ".m4v": "VideoClipImporter", ".mpg": "VideoClipImporter",
	".mpeg": "VideoClipImporter",
	".wav": "AudioImporter", ".mp3": "AudioImporter", ".ogg": "AudioImporter",
	".aif": "AudioImporter", ".aiff": "AudioImporter", ".flac": "AudioImporter",
}

// Ext returns the lowercased extension of the final path segment, including
// the leading dot, or "" when there is none.
func Ext(assetPath string) string {
	return strings.ToLower(path.Ext(assetPath))
}

// Name returns the final path segment.
func Name(assetPath string) string {
	return path.Base(assetPath)
}

// Categorize returns the display type and category for an asset path. A
// TextureImporter hint forces the Textures category regardless of extension.
func Categorize(assetPath, importerType string) (assetType, category string) {
	ext := Ext(assetPath)

	assetType, ok := displayTypes[ext]
	if !ok {
		if ext == "" {
			assetType = "no-extension"
		} else {
			assetType = ext
		}
	}

	category, ok = categories[ext]
	if !ok {
		category = "Other"
	}
	if importerType == "TextureImporter" {
		category = "Textures"
	}
	return assetType, category
}

// InferImporter guesses the importer from the extension when the log never
// names one.
func InferImporter(assetPath string) string {
	if imp, ok := importers[Ext(assetPath)]; ok {
		return imp
	}
	return UnknownImporter
}
