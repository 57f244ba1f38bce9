package fileInfo

import (
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

type FileNode struct {
	Name     string     `json:"name"`
	IsDir    bool       `json:"is_dir"`
	Size     int64      `json:"size"`
	MimeType string     `json:"mime_type,omitempty"`
	Children []FileNode `json:"children,omitempty"`
	Path     string     `json:"-"`
}

// CreateNode describes path, walking directories.
func CreateNode(path string) (FileNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileNode{}, err
	}
	node := FileNode{
		Name:  info.Name(),
		IsDir: info.IsDir(),
		Size:  info.Size(),
		Path:  path,
	}
	if !node.IsDir {
		node.MimeType = DetectMimeType(path)
		return node, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return FileNode{}, err
	}
	node.Size = 0
	node.Children = make([]FileNode, 0, len(entries))
	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		childNode, err := CreateNode(childPath)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "CreateNode",
				"path":     childPath,
				"error":    err.Error(),
			}).Warn("Skipping unreadable entry")
			continue
		}
		node.Children = append(node.Children, childNode)
		node.Size += childNode.Size
	}
	return node, nil
}

// DetectMimeType sniffs the file content, falling back to a generic type.
func DetectMimeType(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mime.String()
}

// Files returns every regular file below n in depth-first order.
func (n FileNode) Files() []FileNode {
	if !n.IsDir {
		return []FileNode{n}
	}
	var files []FileNode
	for _, child := range n.Children {
		files = append(files, child.Files()...)
	}
	return files
}

// CollectFiles expands paths into the regular files they contain.
func CollectFiles(paths []string) ([]FileNode, error) {
	var files []FileNode
	for _, p := range paths {
		node, err := CreateNode(p)
		if err != nil {
			return nil, err
		}
		files = append(files, node.Files()...)
	}
	return files, nil
}
