package workflows_test

import (
	"testing"

	"darkroom/internal/testsupport"
	"darkroom/internal/workflows"
)

func loadLibrary(t *testing.T) *workflows.Library {
	t.Helper()
	library, err := workflows.Load(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("workflows.Load: %v", err)
	}
	return library
}

func TestInstancesDoNotShareState(t *testing.T) {
	library := loadLibrary(t)
	tpl := library.Default()

	first, err := tpl.Instantiate()
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	second, err := tpl.Instantiate()
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	if err := first.SetSeed(111); err != nil {
		t.Fatalf("SetSeed: %v", err)
	}
	if err := second.SetSeed(222); err != nil {
		t.Fatalf("SetSeed: %v", err)
	}

	firstSeed := first.Graph()["3"]["inputs"].(map[string]any)["seed"]
	secondSeed := second.Graph()["3"]["inputs"].(map[string]any)["seed"]
	if firstSeed == secondSeed {
		t.Fatalf("instances share seed state: %v", firstSeed)
	}

	// A third instance must still carry the template's pristine values.
	third, err := tpl.Instantiate()
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if got := third.Graph()["3"]["inputs"].(map[string]any)["seed"]; got != float64(0) {
		t.Fatalf("template graph mutated: seed = %v", got)
	}
}

func TestSettersWriteConfiguredSlots(t *testing.T) {
	library := loadLibrary(t)
	tpl, ok := library.Get("image_edit")
	if !ok {
		t.Fatal("image_edit template missing")
	}

	instance, err := tpl.Instantiate()
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if err := instance.SetInputImage("photo.png"); err != nil {
		t.Fatalf("SetInputImage: %v", err)
	}
	if err := instance.SetOutputPrefix("AutoOutput/photo_A"); err != nil {
		t.Fatalf("SetOutputPrefix: %v", err)
	}
	if err := instance.SetPrompt("remove the background"); err != nil {
		t.Fatalf("SetPrompt: %v", err)
	}

	graph := instance.Graph()
	if got := graph["10"]["inputs"].(map[string]any)["image"]; got != "photo.png" {
		t.Errorf("input slot = %v", got)
	}
	if got := graph["60"]["inputs"].(map[string]any)["filename_prefix"]; got != "AutoOutput/photo_A" {
		t.Errorf("output slot = %v", got)
	}
	if got := graph["76"]["inputs"].(map[string]any)["text"]; got != "remove the background" {
		t.Errorf("prompt slot = %v", got)
	}
}

func TestPromptRejectedWithoutSlot(t *testing.T) {
	library := loadLibrary(t)
	tpl := library.Default()

	instance, err := tpl.Instantiate()
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if err := instance.SetPrompt("anything"); err == nil {
		t.Fatal("prompt write should fail on a template without a prompt node")
	}
}

func TestInputRejectedWithoutSlot(t *testing.T) {
	library := loadLibrary(t)
	tpl := library.TextToImage()
	if tpl == nil {
		t.Fatal("text_to_image template missing")
	}
	if tpl.RequiresInput() {
		t.Fatal("generation template should not require input")
	}

	instance, err := tpl.Instantiate()
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if err := instance.SetInputImage("photo.png"); err == nil {
		t.Fatal("input write should fail on a template without an input node")
	}
}

func TestRandomSeedStaysInRange(t *testing.T) {
	const low = int64(100_000_000_000_000)
	const high = int64(1_000_000_000_000_000)
	for i := 0; i < 1000; i++ {
		seed := workflows.RandomSeed()
		if seed < low || seed >= high {
			t.Fatalf("seed %d outside 15-digit range", seed)
		}
	}
}

func TestIterationSuffixes(t *testing.T) {
	if got := workflows.IterationSuffix(0); got != "A" {
		t.Errorf("suffix 0 = %q", got)
	}
	if got := workflows.IterationSuffix(19); got != "T" {
		t.Errorf("suffix 19 = %q", got)
	}
}

func TestTotalCost(t *testing.T) {
	library := loadLibrary(t)
	// Default template runs 3 iterations at 5 credits each.
	if got := library.Default().TotalCost(); got != 15 {
		t.Fatalf("TotalCost = %d, want 15", got)
	}
}
