// ABOUTME: Tests for filesystem's URI parsing and local-path resolution
// ABOUTME: S3/SFTP resolution needs live credentials/hosts and is not exercised by these tests

package filesystem

import (
	"testing"

	"github.com/spf13/afero"
)

func TestLocate_BarePathIsLocal(t *testing.T) {
	loc, err := Locate("/tmp/data.txt")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if loc.Scheme != "file" || loc.Path != "/tmp/data.txt" {
		t.Errorf("expected a local file location, got %+v", loc)
	}
}

func TestLocate_S3URIParsesBucketAndPath(t *testing.T) {
	loc, err := Locate("s3://my-bucket/reports/2026.csv")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if loc.Scheme != "s3" || loc.Bucket != "my-bucket" || loc.Path != "reports/2026.csv" {
		t.Errorf("expected bucket=my-bucket path=reports/2026.csv, got %+v", loc)
	}
}

func TestLocate_SFTPURIParsesHostAndPort(t *testing.T) {
	loc, err := Locate("sftp://example.com:2222/incoming/file.txt")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if loc.Scheme != "sftp" || loc.Host != "example.com" || loc.Port != "2222" {
		t.Errorf("expected host=example.com port=2222, got %+v", loc)
	}
}

func TestLocate_InvalidURIErrors(t *testing.T) {
	if _, err := Locate("://not-a-valid-uri"); err == nil {
		t.Fatal("expected an error for a malformed URI")
	}
}

func TestResolve_LocalSchemeReturnsOsFs(t *testing.T) {
	fs, err := Resolve(&Location{Scheme: "file", Path: "/tmp"}, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, ok := fs.(*afero.OsFs); !ok {
		t.Errorf("expected *afero.OsFs for the local scheme, got %T", fs)
	}
}

func TestResolve_UnsupportedSchemeErrors(t *testing.T) {
	_, err := Resolve(&Location{Scheme: "ftp"}, nil)
	if err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
}

func TestResolve_S3WithoutBucketErrors(t *testing.T) {
	_, err := Resolve(&Location{Scheme: "s3"}, nil)
	if err == nil {
		t.Fatal("expected an error when the s3 location has no bucket")
	}
}

func TestResolve_SFTPWithoutHostErrors(t *testing.T) {
	_, err := Resolve(&Location{Scheme: "sftp"}, nil)
	if err == nil {
		t.Fatal("expected an error when the sftp location has no host")
	}
}
