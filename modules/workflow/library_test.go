package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func loadTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := LoadLibrary(filepath.Join("testdata", "manifest.yaml"))
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	return lib
}

func TestLoadLibraryAllTemplates(t *testing.T) {
	lib := loadTestLibrary(t)
	for _, name := range []string{Txt2Img, Img2Img, Inpaint} {
		if !lib.Has(name) {
			t.Fatalf("template %s missing", name)
		}
		tpl, err := lib.Load(name)
		if err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
		if tpl.Name() != name {
			t.Fatalf("name = %s, want %s", tpl.Name(), name)
		}
	}
	if err := lib.Require(Inpaint, RolePrompt, RoleSampler, RoleImage, RoleMask); err != nil {
		t.Fatalf("Require inpaint: %v", err)
	}
	if err := lib.Require(Txt2Img, RoleMask); !errors.Is(err, ErrBinding) {
		t.Fatalf("expected ErrBinding for txt2img mask, got %v", err)
	}
}

func TestTemplateSettersMutateBoundNodes(t *testing.T) {
	lib := loadTestLibrary(t)
	tpl, err := lib.Load(Txt2Img)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := tpl.SetPrompt("a red apple"); err != nil {
		t.Fatalf("SetPrompt: %v", err)
	}
	if err := tpl.SetSteps(1); err != nil {
		t.Fatalf("SetSteps: %v", err)
	}
	if err := tpl.SetSize(640, 384); err != nil {
		t.Fatalf("SetSize: %v", err)
	}
	if err := tpl.SetSeed(42); err != nil {
		t.Fatalf("SetSeed: %v", err)
	}

	doc := tpl.Document()
	if got := doc["42"].Inputs["text"]; got != "a red apple" {
		t.Fatalf("prompt = %v", got)
	}
	if got := doc["41"].Inputs["steps"]; got != 1 {
		t.Fatalf("steps = %v", got)
	}
	if got := doc["41"].Inputs["seed"]; got != int64(42) {
		t.Fatalf("seed = %v", got)
	}
	if doc["45"].Inputs["width"] != 640 || doc["45"].Inputs["height"] != 384 {
		t.Fatalf("size = %v x %v", doc["45"].Inputs["width"], doc["45"].Inputs["height"])
	}
}

func TestLoadReturnsIndependentCopies(t *testing.T) {
	lib := loadTestLibrary(t)
	a, _ := lib.Load(Img2Img)
	b, _ := lib.Load(Img2Img)

	if err := a.SetImageInput("first.png"); err != nil {
		t.Fatalf("SetImageInput: %v", err)
	}
	if got := b.Document()["10"].Inputs["image"]; got != "" {
		t.Fatalf("second copy was mutated: %v", got)
	}
}

func TestSetterRejectsUnboundRole(t *testing.T) {
	lib := loadTestLibrary(t)
	tpl, _ := lib.Load(Txt2Img)

	if err := tpl.SetImageInput("x.png"); !errors.Is(err, ErrBinding) {
		t.Fatalf("expected ErrBinding, got %v", err)
	}
}

func TestNegativePromptWithoutBindingIsNoop(t *testing.T) {
	specs := map[string]TemplateSpec{
		"plain": {Nodes: map[Role]string{RolePrompt: "1", RoleSampler: "2"}},
	}
	raws := map[string][]byte{
		"plain": []byte(`{"1":{"class_type":"CLIPTextEncode","inputs":{"text":""}},"2":{"class_type":"KSampler","inputs":{"steps":20,"seed":0}}}`),
	}
	lib, err := NewLibrary(specs, raws)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	tpl, _ := lib.Load("plain")
	if err := tpl.SetNegativePrompt("blurry"); err != nil {
		t.Fatalf("SetNegativePrompt: %v", err)
	}
	// denoise is not present on this sampler
	if err := tpl.SetDenoise(0.5); !errors.Is(err, ErrBinding) {
		t.Fatalf("expected ErrBinding for missing denoise input, got %v", err)
	}
}

func TestLoadLibraryFailsOnMissingNode(t *testing.T) {
	dir := t.TempDir()
	manifest := "templates:\n  txt2img:\n    file: t.json\n    nodes:\n      prompt: \"99\"\n"
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "t.json"), []byte(`{"1":{"class_type":"X","inputs":{"text":""}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLibrary(filepath.Join(dir, "manifest.yaml")); !errors.Is(err, ErrBinding) {
		t.Fatalf("expected ErrBinding, got %v", err)
	}
}

func TestLoadLibraryFailsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	manifest := "templates:\n  txt2img:\n    file: missing.json\n    nodes: {}\n"
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLibrary(filepath.Join(dir, "manifest.yaml")); err == nil {
		t.Fatalf("expected error for missing template file")
	}
}
