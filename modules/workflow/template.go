package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBinding - 템플릿 노드/필드 바인딩 오류 (설정 오류)
var ErrBinding = errors.New("workflow binding error")

// Role - 오케스트레이터가 값을 채우는 노드의 역할
type Role string

const (
	RolePrompt         Role = "prompt"
	RoleNegativePrompt Role = "negative_prompt"
	RoleSampler        Role = "sampler"
	RoleLatent         Role = "latent"
	RoleImage          Role = "image"
	RoleMask           Role = "mask"
)

// roleFields - 역할별로 노드 inputs 에 반드시 있어야 하는 필드
var roleFields = map[Role][]string{
	RolePrompt:         {"text"},
	RoleNegativePrompt: {"text"},
	RoleSampler:        {"steps"},
	RoleLatent:         {"width", "height"},
	RoleImage:          {"image"},
	RoleMask:           {"image"},
}

// Node - ComfyUI API 포맷 노드
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Document - 노드 ID -> 노드 (엔진에 제출되는 job description)
type Document map[string]*Node

// Template - 파싱된 문서 + 역할 바인딩. Load 마다 독립된 복사본.
type Template struct {
	name  string
	doc   Document
	nodes map[Role]string
}

// Name - 템플릿 이름
func (t *Template) Name() string { return t.name }

// Document - 제출용 문서
func (t *Template) Document() Document { return t.doc }

// SetPrompt - 프롬프트 텍스트
func (t *Template) SetPrompt(text string) error {
	return t.set(RolePrompt, "text", text)
}

// SetNegativePrompt - 네거티브 프롬프트. 바인딩이 없는 템플릿이면 무시.
func (t *Template) SetNegativePrompt(text string) error {
	if _, ok := t.nodes[RoleNegativePrompt]; !ok {
		return nil
	}
	return t.set(RoleNegativePrompt, "text", text)
}

// SetSteps - 샘플러 step 수
func (t *Template) SetSteps(steps int) error {
	return t.set(RoleSampler, "steps", steps)
}

// SetSeed - 샘플러 seed (KSampler: seed, KSamplerAdvanced: noise_seed)
func (t *Template) SetSeed(seed int64) error {
	node, err := t.node(RoleSampler)
	if err != nil {
		return err
	}
	if _, ok := node.Inputs["noise_seed"]; ok {
		node.Inputs["noise_seed"] = seed
		return nil
	}
	return t.set(RoleSampler, "seed", seed)
}

// SetDenoise - 샘플러 denoise strength (0..1)
func (t *Template) SetDenoise(denoise float64) error {
	return t.set(RoleSampler, "denoise", denoise)
}

// SetSize - latent 해상도
func (t *Template) SetSize(width, height int) error {
	if err := t.set(RoleLatent, "width", width); err != nil {
		return err
	}
	return t.set(RoleLatent, "height", height)
}

// SetImageInput - 업로드된 입력 이미지 이름
func (t *Template) SetImageInput(name string) error {
	return t.set(RoleImage, "image", name)
}

// SetMaskInput - 업로드된 마스크 이미지 이름
func (t *Template) SetMaskInput(name string) error {
	return t.set(RoleMask, "image", name)
}

func (t *Template) node(role Role) (*Node, error) {
	id, ok := t.nodes[role]
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: template %q has no %s node", ErrBinding, t.name, role)
	}
	node, ok := t.doc[id]
	if !ok || node == nil {
		return nil, fmt.Errorf("%w: template %q: %s node %q not found", ErrBinding, t.name, role, id)
	}
	return node, nil
}

func (t *Template) set(role Role, field string, value any) error {
	node, err := t.node(role)
	if err != nil {
		return err
	}
	if _, ok := node.Inputs[field]; !ok {
		return fmt.Errorf("%w: template %q: node %q (%s) has no input %q",
			ErrBinding, t.name, t.nodes[role], node.ClassType, field)
	}
	node.Inputs[field] = value
	return nil
}

// parseTemplate - raw JSON 을 Template 으로 파싱하고 바인딩 검증
func parseTemplate(name string, raw []byte, nodes map[Role]string) (*Template, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}
	t := &Template{name: name, doc: doc, nodes: nodes}
	for role, id := range nodes {
		if id == "" {
			continue
		}
		node, err := t.node(role)
		if err != nil {
			return nil, err
		}
		if node.Inputs == nil {
			return nil, fmt.Errorf("%w: template %q: node %q has no inputs", ErrBinding, name, id)
		}
		for _, field := range roleFields[role] {
			if _, ok := node.Inputs[field]; !ok {
				return nil, fmt.Errorf("%w: template %q: node %q (%s) has no input %q",
					ErrBinding, name, id, role, field)
			}
		}
	}
	return t, nil
}
