package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// extensions the mime package does not know on minimal images
var knownTypes = map[string]string{
	".json": "application/json",
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

func DetectContentType(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
