// Package rcfile decodes the rc-file's node structure (spec.md §6): the
// top-level "global" / "project <name>" / "group <name>" /
// "override <name>" / "include <path>" keys, and the string-valued option
// maps they carry. The YAML grammar itself is out of scope per spec.md
// §1 ("the core does not implement ... the YAML-format parser for the
// rc-file; only its produced option table is specified") — this package
// is the thin, documented boundary that produces that option table from
// an on-disk file, using gopkg.in/yaml.v3 (as buildkite-agent and
// EmundoT-git-vendor do for their own config files) to get there.
package rcfile

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// ProjectNode is a "project <name>" entry.
type ProjectNode struct {
	Name    string
	Options map[string]string
	Order   int // position in file order, across all included files
}

// GroupNode is a "group <name>" entry.
type GroupNode struct {
	Name    string
	Options map[string]string
	Order   int
}

// OverrideNode is an "override <name>" entry: option-only, targets an
// existing project or group by name.
type OverrideNode struct {
	Name    string
	Options map[string]string
}

// Document is the fully-resolved (includes expanded) rc-file contents.
type Document struct {
	Global    map[string]string
	Projects  []ProjectNode
	Groups    []GroupNode
	Overrides []OverrideNode
}

// Load parses path and recursively resolves any "include" entries,
// relative to the including file's directory.
func Load(path string) (*Document, error) {
	doc := &Document{Global: make(map[string]string)}
	seq := 0
	if err := load(path, doc, &seq, map[string]bool{}); err != nil {
		return nil, err
	}
	return doc, nil
}

func load(path string, doc *Document, seq *int, visiting map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if visiting[abs] {
		return xerrors.Errorf("include cycle at %s", abs)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return xerrors.Errorf("reading rc-file %s: %w", abs, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return xerrors.Errorf("parsing rc-file %s: %w", abs, err)
	}
	if len(root.Content) == 0 {
		return nil // empty file
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return xerrors.Errorf("rc-file %s: top level must be a mapping", abs)
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode, valNode := mapping.Content[i], mapping.Content[i+1]
		key := keyNode.Value
		keyword, arg, _ := strings.Cut(key, " ")

		switch keyword {
		case "global":
			opts, err := decodeOptions(valNode)
			if err != nil {
				return xerrors.Errorf("%s: global: %w", abs, err)
			}
			for k, v := range opts {
				doc.Global[k] = v
			}
		case "project":
			opts, err := decodeOptions(valNode)
			if err != nil {
				return xerrors.Errorf("%s: project %s: %w", abs, arg, err)
			}
			doc.Projects = append(doc.Projects, ProjectNode{Name: arg, Options: opts, Order: *seq})
			*seq++
		case "group":
			opts, err := decodeOptions(valNode)
			if err != nil {
				return xerrors.Errorf("%s: group %s: %w", abs, arg, err)
			}
			doc.Groups = append(doc.Groups, GroupNode{Name: arg, Options: opts, Order: *seq})
			*seq++
		case "override":
			opts, err := decodeOptions(valNode)
			if err != nil {
				return xerrors.Errorf("%s: override %s: %w", abs, arg, err)
			}
			doc.Overrides = append(doc.Overrides, OverrideNode{Name: arg, Options: opts})
		case "include":
			var rel string
			if err := valNode.Decode(&rel); err != nil {
				return xerrors.Errorf("%s: include: %w", abs, err)
			}
			incPath := rel
			if !filepath.IsAbs(incPath) {
				incPath = filepath.Join(filepath.Dir(abs), rel)
			}
			if err := load(incPath, doc, seq, visiting); err != nil {
				return err
			}
		default:
			return xerrors.Errorf("%s: unrecognized rc-file section %q", abs, key)
		}
	}
	return nil
}

// decodeOptions reads a mapping of string option names to string values.
// "use-projects" and "ignore-projects" may be given as a YAML sequence;
// they are joined with spaces to match the option table's string model.
func decodeOptions(n *yaml.Node) (map[string]string, error) {
	if n.Kind != yaml.MappingNode {
		return nil, xerrors.Errorf("expected a mapping, got %v", n.Kind)
	}
	out := make(map[string]string, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		v := n.Content[i+1]
		switch v.Kind {
		case yaml.ScalarNode:
			out[k] = v.Value
		case yaml.SequenceNode:
			var items []string
			for _, item := range v.Content {
				items = append(items, item.Value)
			}
			out[k] = strings.Join(items, " ")
		default:
			return nil, xerrors.Errorf("option %q: unsupported value kind %v", k, v.Kind)
		}
	}
	return out, nil
}
