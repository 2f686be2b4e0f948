package engine

import (
	"os"

	"modelrt/pkg/types"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func testDescriptor(path string) types.ModelDescriptor {
	return types.ModelDescriptor{ID: "toy", ArtifactLocation: path, Family: "toy"}
}
