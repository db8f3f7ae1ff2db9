package workflows_test

import "testing"

func TestLibraryLookups(t *testing.T) {
	library := loadLibrary(t)

	if tpl, ok := library.ByCommand("/BR"); !ok || tpl.Name != "background_cleanup" {
		t.Fatalf("ByCommand(/BR) = %v ok=%v", tpl, ok)
	}
	if _, ok := library.ByCommand("/nope"); ok {
		t.Fatal("unknown command resolved")
	}
	if library.Default().Name != "background_cleanup" {
		t.Fatalf("default = %s", library.Default().Name)
	}
	if library.Edit() == nil || library.Edit().Name != "image_edit" {
		t.Fatal("edit template not resolved")
	}
	if library.TextToImage() == nil || library.TextToImage().Name != "text_to_image" {
		t.Fatal("text-to-image template not resolved")
	}
}

func TestByDisplayNameMatchesGeneratedTitles(t *testing.T) {
	library := loadLibrary(t)

	// Without an explicit display name the template title-cases its key.
	if tpl, ok := library.ByDisplayName("Background Cleanup"); !ok || tpl.Name != "background_cleanup" {
		t.Fatalf("ByDisplayName = %v ok=%v", tpl, ok)
	}
	// The raw template name works too, for classifier output.
	if _, ok := library.ByDisplayName("image_edit"); !ok {
		t.Fatal("raw name lookup failed")
	}
}

func TestSwitchableSortsByCommand(t *testing.T) {
	library := loadLibrary(t)

	switchable := library.Switchable()
	if len(switchable) != 2 {
		t.Fatalf("switchable = %d templates, want 2", len(switchable))
	}
	if switchable[0].Command > switchable[1].Command {
		t.Fatalf("commands out of order: %s before %s", switchable[0].Command, switchable[1].Command)
	}

	names := library.DisplayNames()
	if len(names) != 3 {
		t.Fatalf("display names = %v", names)
	}
}
