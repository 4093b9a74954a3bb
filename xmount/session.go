package xmount

import (
	"context"
	"fmt"
	"log"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/sirupsen/logrus"

	"xmount/cache"
	"xmount/image"
	"xmount/reader"
	"xmount/vfs"
	"xmount/vheader"
)

// Session is one fully-initialized mount: the open image reader, the
// built header/descriptor, the optional cache, the filesystem surface,
// and the live FUSE mount. Construct with New, run with Serve.
type Session struct {
	cfg Config
	log *logrus.Logger

	img  reader.Image
	view *image.View
	c    *cache.Store

	vmdkDesc *vheader.VmdkDescriptor
	fs       *vfs.FileSystem

	mfs *fuse.MountedFileSystem
}

// New performs the eight-step mount session init order: parse config
// (already done by the caller), open the Image Reader, compute the
// identity hash, derive virtual file names, build the info file, build
// the VDI header or VMDK descriptor, open the cache if writable, and
// construct the filesystem surface ready to serve.
func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := logrus.New()
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	img, err := reader.Open(cfg.InVariant, cfg.InputPath)
	if err != nil {
		return nil, fmt.Errorf("xmount: opening input: %w", err)
	}

	size, err := img.Size()
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("xmount: stat input: %w", err)
	}

	identity, err := computeIdentityHash(img, size)
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("xmount: hashing input: %w", err)
	}
	log.WithField("identity", fmt.Sprintf("%x", identity)).Debug("computed identity hash")
	log.WithFields(logrus.Fields{
		"input":  cfg.InputPath,
		"size":   humanize.Bytes(uint64(size)),
		"format": cfg.OutFormat,
	}).Info("opened input image")

	base := baseName(cfg.InputPath)

	ewfHeader := (*reader.EWFHeaderValues)(nil)
	if e, ok := img.(*reader.EWF); ok {
		ewfHeader = e.HeaderValues()
	}
	infoBytes := vheader.BuildInfoFile(ewfHeader)

	var vdi *vheader.VdiHeader
	var vmdkDesc *vheader.VmdkDescriptor
	if cfg.OutFormat.HasHeader() {
		modify := uuid.New() // random version-4 UUID: 122 random bits, 6 fixed version/variant bits
		comment := fmt.Sprintf("This VDI was emulated using xmount v%s", cfg.Version)
		vdi = vheader.BuildVDI(uint64(size), identity, [16]byte(modify), comment)
	}
	if cfg.OutFormat.HasDescriptor() {
		rawName := base + ".dd"
		vmdkDesc = vheader.BuildVMDKDescriptor(uint64(size), rawName, cfg.OutFormat.Bus())
	}

	var store *cache.Store
	if cfg.Writable {
		store, err = cache.Open(cfg.CachePath, uint64(size), cfg.OWCache)
		if err != nil {
			img.Close()
			return nil, fmt.Errorf("xmount: opening cache: %w", err)
		}
	}

	view := image.New(img, uint64(size), cfg.OutFormat, vdi, store)

	fs := vfs.New(view, infoBytes, vmdkDesc, vfs.Config{
		BaseName: base,
		Format:   cfg.OutFormat,
		Uid:      uint32(os.Getuid()),
		Gid:      uint32(os.Getgid()),
	})

	return &Session{
		cfg:      cfg,
		log:      log,
		img:      img,
		view:     view,
		c:        store,
		vmdkDesc: vmdkDesc,
		fs:       fs,
	}, nil
}

// Serve mounts the filesystem surface and blocks until it is unmounted
// or ctx is cancelled, then tears the session down in the reverse of
// New's init order: leave the serving loop, close the input reader,
// close the cache (already flushed per write), free buffers.
func (s *Session) Serve(ctx context.Context) error {
	cfg := &fuse.MountConfig{
		ReadOnly: !s.cfg.Writable,
		Options:  fuseOptionSet(s.cfg),
	}
	if s.cfg.Debug {
		cfg.DebugLogger = log.New(os.Stderr, "xmount/fuse: ", log.LstdFlags)
	}
	if s.cfg.Single {
		// -s asks the filesystem runtime itself to dispatch callbacks
		// from a single thread; that dispatch loop is the out-of-scope
		// kernel-binding collaborator (spec §1), so this is advisory
		// only here. Our own locking (muImageRW/muInfo) already
		// linearizes virtual-image and info-file access regardless.
		s.log.Debug("single-threaded serving requested")
	}

	server := fuseutil.NewFileSystemServer(s.fs)
	mfs, err := fuse.Mount(s.cfg.MountPoint, server, cfg)
	if err != nil {
		return fmt.Errorf("xmount: mount: %w", err)
	}
	s.mfs = mfs

	go func() {
		<-ctx.Done()
		fuse.Unmount(s.cfg.MountPoint)
	}()

	if err := mfs.Join(ctx); err != nil {
		s.teardown()
		return fmt.Errorf("xmount: serve: %w", err)
	}

	s.teardown()
	return nil
}

func (s *Session) teardown() {
	if s.img != nil {
		s.img.Close()
	}
	if s.c != nil {
		s.c.Close()
	}
}

// fuseOptionSet derives the mount option set from -o/allow_other rules:
// allow_other is on by default unless the user passed -o with options
// (which disables the default) or -o no_allow_other explicitly.
func fuseOptionSet(cfg Config) map[string]string {
	opts := map[string]string{}
	suppressAllowOther := len(cfg.FuseOpts) > 0
	for _, o := range cfg.FuseOpts {
		if o == "no_allow_other" {
			continue
		}
		opts[o] = ""
	}
	if !suppressAllowOther && cfg.AllowOther {
		opts["allow_other"] = ""
	}
	return opts
}
