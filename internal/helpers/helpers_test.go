package helpers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Empty string", "", "Assignment"},
		{"Only illegal characters", `<>:"/\|?*`, "Assignment"},
		{"Simple label", "Homework 1", "Homework 1"},
		{"Slash and colon", "Homework #1: A/B", "Homework #1 A B"},
		{"Collapses whitespace", "  Lab \t  Report\n", "Lab Report"},
		{"Keeps underscores and dots", "unit_3.review", "unit_3.review"},
		{"Truncates long labels", strings.Repeat("a", 150), strings.Repeat("a", 100)},
		{"Trims after truncation", strings.Repeat("a", 99) + " b", strings.Repeat("a", 99)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFolderName(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeFolderName(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := SanitizeFolderName(got); again != got {
				t.Errorf("SanitizeFolderName not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Illegal question mark", "My File?.pdf", "My File_.pdf"},
		{"No extension", "Essay draft", "Essay draft"},
		{"Path separators", "unit/1\\notes.docx", "unit_1_notes.docx"},
		{"Collapses whitespace", "Week   3  notes.pptx", "Week 3 notes.pptx"},
		{"Trims dots and spaces", " ..notes.. .txt", "notes.txt"},
		{"Trailing dot without extension", "x.pdf.", "x.pdf"},
		{"Long extension is not split", "archive.tarball", "archive.tarball"},
		{"Single letter extension is not split", "Chapter 3.1", "Chapter 3.1"},
		{"Empty name keeps extension", "?.pdf", "_.pdf"},
		{"Empty after trim", " . .pdf", "attachment.pdf"},
		{"Empty string", "", "attachment"},
		{"Truncates base name", strings.Repeat("b", 250) + ".pdf", strings.Repeat("b", 200) + ".pdf"},
		{"Unicode preserved", "Übung 1: Lösung.pdf", "Übung 1_ Lösung.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := SanitizeFilename(got); again != got {
				t.Errorf("SanitizeFilename not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSplitExtension(t *testing.T) {
	tests := []struct {
		input    string
		wantBase string
		wantExt  string
	}{
		{"report.pdf", "report", ".pdf"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"slides.PPTX", "slides", ".PPTX"},
		{"noext", "noext", ""},
		{"v1.2", "v1.2", ""},
		{"clip.mp4", "clip", ".mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			base, ext := SplitExtension(tt.input)
			if base != tt.wantBase || ext != tt.wantExt {
				t.Errorf("SplitExtension(%q) = (%q, %q), want (%q, %q)", tt.input, base, ext, tt.wantBase, tt.wantExt)
			}
		})
	}
}

func TestSessionFolder(t *testing.T) {
	fixed := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.Local)

	if got := FormatTimestamp(fixed); got != "2024-03-05_07-08-09" {
		t.Errorf("FormatTimestamp = %q", got)
	}

	got := SessionFolder("Homework #1: A/B", fixed)
	want := "Homework #1 A B_2024-03-05_07-08-09"
	if got != want {
		t.Errorf("SessionFolder = %q, want %q", got, want)
	}
	if strings.Contains(got, "  ") {
		t.Errorf("SessionFolder contains double spaces: %q", got)
	}

	if got := SessionFolder("   ", fixed); got != "Assignment_2024-03-05_07-08-09" {
		t.Errorf("SessionFolder with blank label = %q", got)
	}
}

func TestBytesToSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes uint64
		want  string
	}{
		{"Zero bytes", 0, "0B"},
		{"Bytes", 500, "500.00B"},
		{"Kilobytes", 1024, "1.00KB"},
		{"Kilobytes fractional", 1536, "1.50KB"},
		{"Megabytes", 1024 * 1024, "1.00MB"},
		{"Gigabytes", 1024 * 1024 * 1024, "1.00GB"},
		{"Terabytes", 1024 * 1024 * 1024 * 1024, "1.00TB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BytesToSize(tt.bytes)
			if got != tt.want {
				t.Errorf("BytesToSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestHashFile(t *testing.T) {
	tempDir := t.TempDir()

	a := filepath.Join(tempDir, "a.txt")
	b := filepath.Join(tempDir, "b.txt")
	c := filepath.Join(tempDir, "c.txt")
	if err := os.WriteFile(a, []byte("worksheet answers"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", a, err)
	}
	if err := os.WriteFile(b, []byte("worksheet answers"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", b, err)
	}
	if err := os.WriteFile(c, []byte("different answers"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", c, err)
	}

	hashA, err := HashFile(a)
	if err != nil {
		t.Fatalf("HashFile(%s) error: %v", a, err)
	}
	hashB, _ := HashFile(b)
	hashC, _ := HashFile(c)

	if len(hashA) != 64 {
		t.Errorf("expected 64 hex characters, got %d (%s)", len(hashA), hashA)
	}
	if hashA != strings.ToUpper(hashA) {
		t.Errorf("expected upper-case digest, got %s", hashA)
	}
	if hashA != hashB {
		t.Errorf("identical content hashed differently: %s vs %s", hashA, hashB)
	}
	if hashA == hashC {
		t.Errorf("different content produced the same hash %s", hashA)
	}

	if _, err := HashFile(filepath.Join(tempDir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCheckAndMakeDir(t *testing.T) {
	baseTempDir := t.TempDir()

	tests := []struct {
		name       string
		dirToMake  string
		wantResult bool
		wantExists bool
	}{
		{"Create simple directory", "new_dir", true, true},
		{"Create nested directory", filepath.Join("Classroom", "HW_2024-01-01_00-00-00"), true, true},
		{"Attempt to create directory that is a file", "existing_file.txt", false, true},
	}

	preExistingFile := filepath.Join(baseTempDir, "existing_file.txt")
	if _, err := os.Create(preExistingFile); err != nil {
		t.Fatalf("Failed to pre-create file %s: %v", preExistingFile, err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fullPathToMake := filepath.Join(baseTempDir, tt.dirToMake)
			gotResult := CheckAndMakeDir(fullPathToMake)
			if gotResult != tt.wantResult {
				t.Errorf("CheckAndMakeDir(%q) = %v, want %v", fullPathToMake, gotResult, tt.wantResult)
			}
			_, err := os.Stat(fullPathToMake)
			if gotExists := err == nil; gotExists != tt.wantExists {
				t.Errorf("CheckAndMakeDir(%q): exists = %v, want %v", fullPathToMake, gotExists, tt.wantExists)
			}
		})
	}
}
