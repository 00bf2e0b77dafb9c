package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// 오케스트레이터가 쓰는 템플릿 이름
const (
	Txt2Img = "txt2img"
	Img2Img = "img2img"
	Inpaint = "inpaint"
)

// Manifest - workflows/manifest.yaml
type Manifest struct {
	Templates map[string]TemplateSpec `yaml:"templates"`
}

// TemplateSpec - 템플릿 파일과 역할별 노드 ID
type TemplateSpec struct {
	File  string          `yaml:"file"`
	Nodes map[Role]string `yaml:"nodes"`
}

type entry struct {
	raw   []byte
	nodes map[Role]string
}

// Library - 시작 시 로드된 템플릿 모음
type Library struct {
	entries map[string]entry
}

// LoadLibrary - manifest 와 모든 템플릿 파일을 읽고 검증.
// 템플릿 파일이 없거나 바인딩이 틀리면 에러 (시작 시 fatal).
func LoadLibrary(manifestPath string) (*Library, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read workflow manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse workflow manifest: %w", err)
	}
	if len(m.Templates) == 0 {
		return nil, fmt.Errorf("workflow manifest %s lists no templates", manifestPath)
	}

	base := filepath.Dir(manifestPath)
	lib := &Library{entries: make(map[string]entry, len(m.Templates))}
	for name, spec := range m.Templates {
		path := spec.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template %q: %w", name, err)
		}
		if err := lib.add(name, raw, spec.Nodes); err != nil {
			return nil, err
		}
		log.Info().Msgf("📄 [Workflow] Loaded template %s from %s", name, path)
	}
	return lib, nil
}

// NewLibrary - 메모리의 템플릿으로 Library 구성 (테스트, 임베드용)
func NewLibrary(specs map[string]TemplateSpec, raws map[string][]byte) (*Library, error) {
	lib := &Library{entries: make(map[string]entry, len(specs))}
	for name, spec := range specs {
		raw, ok := raws[name]
		if !ok {
			return nil, fmt.Errorf("template %q has no document", name)
		}
		if err := lib.add(name, raw, spec.Nodes); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func (l *Library) add(name string, raw []byte, nodes map[Role]string) error {
	if _, err := parseTemplate(name, raw, nodes); err != nil {
		return err
	}
	l.entries[name] = entry{raw: raw, nodes: nodes}
	return nil
}

// Load - 이름으로 새 Template 복사본 생성
func (l *Library) Load(name string) (*Template, error) {
	e, ok := l.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: template %q not loaded", ErrBinding, name)
	}
	return parseTemplate(name, e.raw, e.nodes)
}

// Has - 템플릿 존재 여부
func (l *Library) Has(name string) bool {
	_, ok := l.entries[name]
	return ok
}

// Require - 템플릿이 존재하고 주어진 역할이 모두 바인딩됐는지 확인
func (l *Library) Require(name string, roles ...Role) error {
	e, ok := l.entries[name]
	if !ok {
		return fmt.Errorf("%w: template %q not loaded", ErrBinding, name)
	}
	for _, role := range roles {
		if e.nodes[role] == "" {
			return fmt.Errorf("%w: template %q has no %s binding", ErrBinding, name, role)
		}
	}
	return nil
}
