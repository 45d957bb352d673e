// ABOUTME: filesystem resolves a copy-kind task's src/dest URIs to an afero.Fs
// ABOUTME: backing local paths, S3 buckets, and SFTP/SSH hosts uniformly

package filesystem

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	s3fs "github.com/fclairamb/afero-s3"
	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

// Credentials carries the optional auth material a copy task's spec may supply for
// remote filesystems. Zero value resolves local paths and falls back to ambient
// AWS/SSH environment for remote ones.
type Credentials struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSRegion          string

	SSHUser           string
	SSHPassword       string
	SSHPrivateKey     string
	SSHPrivateKeyPath string
}

// Location is a parsed src/dest URI: scheme plus whatever the scheme needs to locate
// the filesystem root (S3 bucket, SSH host/port) and the path within it.
type Location struct {
	Scheme string
	Host   string
	Port   string
	Bucket string
	Path   string
}

// Locate parses a copy task's src or dest string into a Location. Bare paths
// (no "scheme://") are treated as local.
func Locate(uri string) (*Location, error) {
	if !strings.Contains(uri, "://") {
		return &Location{Scheme: "file", Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid filesystem URI %q: %w", uri, err)
	}

	loc := &Location{
		Scheme: u.Scheme,
		Host:   u.Hostname(),
		Port:   u.Port(),
		Path:   u.Path,
	}
	if loc.Scheme == "s3" {
		loc.Bucket = loc.Host
		loc.Path = strings.TrimPrefix(loc.Path, "/")
	}
	return loc, nil
}

// Resolve returns the afero.Fs backing loc, constructing remote clients as needed.
func Resolve(loc *Location, creds *Credentials) (afero.Fs, error) {
	if creds == nil {
		creds = &Credentials{}
	}

	switch loc.Scheme {
	case "file", "":
		return afero.NewOsFs(), nil
	case "s3":
		return resolveS3(loc, creds)
	case "sftp", "ssh", "scp":
		return resolveSFTP(loc, creds)
	default:
		return nil, fmt.Errorf("unsupported filesystem scheme: %s", loc.Scheme)
	}
}

func resolveS3(loc *Location, creds *Credentials) (afero.Fs, error) {
	if loc.Bucket == "" {
		return nil, fmt.Errorf("s3 location must include a bucket: s3://bucket/path")
	}

	region := firstNonEmpty(creds.AWSRegion, os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION"), "us-east-1")
	awsConfig := &aws.Config{Region: aws.String(region)}
	if creds.AWSAccessKeyID != "" && creds.AWSSecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			creds.AWSAccessKeyID, creds.AWSSecretAccessKey, creds.AWSSessionToken)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return s3fs.NewFs(loc.Bucket, sess), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveSFTP(loc *Location, creds *Credentials) (afero.Fs, error) {
	if loc.Host == "" {
		return nil, fmt.Errorf("sftp location must include a host: sftp://host/path")
	}

	username := firstNonEmpty(creds.SSHUser, os.Getenv("USER"))
	sshConfig := &ssh.ClientConfig{
		User:            username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	if err := addAuthMethods(sshConfig, creds); err != nil {
		return nil, err
	}
	if len(sshConfig.Auth) == 0 {
		return nil, fmt.Errorf("no SSH authentication method available for %s", loc.Host)
	}

	port := firstNonEmpty(loc.Port, "22")
	conn, err := ssh.Dial("tcp", fmt.Sprintf("%s:%s", loc.Host, port), sshConfig)
	if err != nil {
		return nil, fmt.Errorf("dialing %s:%s: %w", loc.Host, port, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("starting sftp session: %w", err)
	}
	return newSFTPFs(client), nil
}

func addAuthMethods(sshConfig *ssh.ClientConfig, creds *Credentials) error {
	if creds.SSHPassword != "" {
		sshConfig.Auth = append(sshConfig.Auth, ssh.Password(creds.SSHPassword))
	}
	if creds.SSHPrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(creds.SSHPrivateKey))
		if err != nil {
			return fmt.Errorf("parsing ssh private key: %w", err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
	}
	if creds.SSHPrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(creds.SSHPrivateKeyPath)
		if err != nil {
			return fmt.Errorf("reading ssh private key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return fmt.Errorf("parsing ssh private key file: %w", err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
	}
	if len(sshConfig.Auth) == 0 {
		for _, keyPath := range defaultKeyPaths() {
			keyBytes, err := os.ReadFile(keyPath)
			if err != nil {
				continue
			}
			if signer, err := ssh.ParsePrivateKey(keyBytes); err == nil {
				sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
				break
			}
		}
	}
	return nil
}

func defaultKeyPaths() []string {
	home := os.Getenv("HOME")
	return []string{home + "/.ssh/id_ed25519", home + "/.ssh/id_rsa", home + "/.ssh/id_ecdsa"}
}

// sftpFs adapts an *sftp.Client to afero.Fs.
type sftpFs struct {
	client *sftp.Client
}

func newSFTPFs(client *sftp.Client) afero.Fs {
	return &sftpFs{client: client}
}

type sftpFile struct {
	*sftp.File
	client *sftp.Client
	name   string
}

func (f *sftpFile) Readdir(count int) ([]os.FileInfo, error) {
	return f.client.ReadDir(f.name)
}

func (f *sftpFile) Readdirnames(n int) ([]string, error) {
	entries, err := f.client.ReadDir(f.name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names, nil
}

func (f *sftpFile) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (fs *sftpFs) Create(name string) (afero.File, error) {
	f, err := fs.client.Create(name)
	if err != nil {
		return nil, err
	}
	return &sftpFile{File: f, client: fs.client, name: name}, nil
}

func (fs *sftpFs) Mkdir(name string, perm os.FileMode) error      { return fs.client.Mkdir(name) }
func (fs *sftpFs) MkdirAll(path string, perm os.FileMode) error   { return fs.client.MkdirAll(path) }
func (fs *sftpFs) Remove(name string) error                       { return fs.client.Remove(name) }
func (fs *sftpFs) RemoveAll(path string) error                    { return fs.client.RemoveAll(path) }
func (fs *sftpFs) Rename(oldname, newname string) error           { return fs.client.Rename(oldname, newname) }
func (fs *sftpFs) Stat(name string) (os.FileInfo, error)          { return fs.client.Stat(name) }
func (fs *sftpFs) Name() string                                   { return "sftpFs" }
func (fs *sftpFs) Chmod(name string, mode os.FileMode) error      { return fs.client.Chmod(name, mode) }
func (fs *sftpFs) Chown(name string, uid, gid int) error          { return fs.client.Chown(name, uid, gid) }
func (fs *sftpFs) Chtimes(name string, a, m time.Time) error      { return fs.client.Chtimes(name, a, m) }

func (fs *sftpFs) Open(name string) (afero.File, error) {
	f, err := fs.client.Open(name)
	if err != nil {
		return nil, err
	}
	return &sftpFile{File: f, client: fs.client, name: name}, nil
}

func (fs *sftpFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := fs.client.OpenFile(name, flag)
	if err != nil {
		return nil, err
	}
	return &sftpFile{File: f, client: fs.client, name: name}, nil
}
