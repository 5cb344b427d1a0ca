package fileengine

import "testing"

func TestValidateUploadSize(t *testing.T) {
	if err := ValidateUpload("a.txt", 200, 100, nil, nil); err == nil {
		t.Fatal("expected FileTooLarge error")
	}
	if err := ValidateUpload("a.txt", 50, 100, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUploadDefaultBlockedExtensions(t *testing.T) {
	if err := ValidateUpload("payload.exe", 10, 0, nil, nil); err == nil {
		t.Fatal("executables should be denied by default")
	}
}

func TestValidateUploadAllowList(t *testing.T) {
	if err := ValidateUpload("report.pdf", 10, 0, []string{".csv", ".xlsx"}, nil); err == nil {
		t.Fatal("extension outside the endpoint allow-list should be denied")
	}
	if err := ValidateUpload("report.csv", 10, 0, []string{".csv", ".xlsx"}, nil); err != nil {
		t.Fatalf("allow-listed extension should pass, got %v", err)
	}
}

func TestValidateUploadCustomBlockedExtension(t *testing.T) {
	if err := ValidateUpload("archive.zip", 10, 0, nil, []string{".zip"}); err == nil {
		t.Fatal("endpoint-declared blocked extension should be denied")
	}
}
