package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const plistFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>DeviceName</key>
  <string>Evidence iPhone</string>
  <key>PasscodeSet</key>
  <true/>
  <key>Battery</key>
  <dict>
    <key>Level</key>
    <integer>82</integer>
  </dict>
  <key>SIMs</key>
  <array>
    <string>89014103211118510720</string>
    <string>89014103211118510721</string>
  </array>
</dict>
</plist>`

func TestSystemInfoFlattensPlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "DeviceInfo.plist")
	if err := os.WriteFile(path, []byte(plistFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, outcome := SystemInfo(context.Background(), SourceFile{Path: path, RelPath: "DeviceInfo.plist", Kind: KindSystemInfo})
	if outcome.Err != nil {
		t.Fatalf("SystemInfo: %v", outcome.Err)
	}
	if outcome.Parsed != 5 {
		t.Fatalf("parsed: want 5 leaves got=%d", outcome.Parsed)
	}

	byKey := map[string]SystemInfoRecord{}
	for _, rec := range records {
		row := rec.(SystemInfoRecord)
		byKey[row.Key] = row
	}

	if got := byKey["DeviceName"].Value; got != "Evidence iPhone" {
		t.Fatalf("DeviceName: got=%q", got)
	}
	if got := byKey["PasscodeSet"].Value; got != "true" {
		t.Fatalf("PasscodeSet: got=%q", got)
	}
	if got := byKey["Battery.Level"].Value; got != "82" {
		t.Fatalf("nested key: got=%q", got)
	}
	if got := byKey["SIMs[1]"].Value; got != "89014103211118510721" {
		t.Fatalf("array key: got=%q", got)
	}
	if got := byKey["DeviceName"].Category; got != "DeviceInfo" {
		t.Fatalf("category: got=%q", got)
	}
}

func TestSystemInfoRejectsMalformedPlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.plist")
	if err := os.WriteFile(path, []byte("<plist><dict><key>oops</key>"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, outcome := SystemInfo(context.Background(), SourceFile{Path: path, RelPath: "broken.plist", Kind: KindSystemInfo})
	if outcome.Err == nil {
		t.Fatalf("SystemInfo: want parse error")
	}
	if len(records) != 0 {
		t.Fatalf("records: want none got=%d", len(records))
	}
}
