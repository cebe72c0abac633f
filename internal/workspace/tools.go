package workspace

import (
	"context"

	"github.com/petasbytes/turnkit/tools"
)

type ReadFileInput struct {
	Path string `json:"path" jsonschema_description:"Relative path of a file in the workspace."`
}

type ListFilesInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Relative directory path. Defaults to the workspace root."`
}

// Tools returns read_file and list_files bound to r.
func (r *Root) Tools() []tools.ToolDefinition {
	return []tools.ToolDefinition{
		tools.Typed("read_file",
			"Read the contents of a file at a relative path in the workspace. Do not use this with directory names.",
			func(_ context.Context, in ReadFileInput) (string, error) {
				return r.ReadFile(in.Path)
			}),
		tools.Typed("list_files",
			"List files and directories at a relative path in the workspace. Directories end with a slash.",
			func(_ context.Context, in ListFilesInput) ([]string, error) {
				return r.ListFiles(in.Path)
			}),
	}
}
