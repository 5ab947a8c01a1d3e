package bwfs

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// BlockStorage translates between byte buffers and fixed-size grayscale PNG
// images, one per logical block, under a single storage directory. Block 0
// is reserved for the superblock fingerprint and is never handed out by the
// bitmap allocator.
type BlockStorage struct {
	dir         string
	width       int
	height      int
	totalBlocks int
	fingerprint string
}

// BytesPerBlock is the fixed capacity of every block in this storage: one
// bit per pixel, packed eight to a byte.
func (s *BlockStorage) BytesPerBlock() int {
	return s.width * s.height / 8
}

func (s *BlockStorage) TotalBlocks() int { return s.totalBlocks }

// NewBlockStorage validates the block geometry and returns a storage façade
// rooted at dir, creating dir if it is missing. It writes no block files;
// callers call Init per-block or rely on Read's absent-file-reads-as-zero
// behaviour.
func NewBlockStorage(dir string, width, height, totalBlocks int, fingerprint string) (*BlockStorage, error) {
	if width <= 0 || height <= 0 || width > 1000 || height > 1000 {
		return nil, fmt.Errorf("bwfs: block dimensions must be in (0,1000], got %dx%d", width, height)
	}
	if (width*height)%8 != 0 {
		return nil, fmt.Errorf("bwfs: block_width * block_height must be divisible by 8")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("bwfs: creating storage dir: %w", err)
	}
	return &BlockStorage{
		dir:         dir,
		width:       width,
		height:      height,
		totalBlocks: totalBlocks,
		fingerprint: fingerprint,
	}, nil
}

func (s *BlockStorage) blockPath(idx uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("block_%08d.png", idx))
}

// Init writes an all-white image (every bit 1) to block idx, overwriting
// any existing file.
func (s *BlockStorage) Init(idx uint32) error {
	if int(idx) >= s.totalBlocks {
		return wrapErr("init", EIO, fmt.Errorf("block %d out of range", idx))
	}
	buf := make([]byte, s.BytesPerBlock())
	for i := range buf {
		buf[i] = 0xFF
	}
	return s.writeRaw(idx, buf)
}

// Read decodes block idx's luminance channel into a packed byte buffer. A
// missing file reads as all-zero bytes; this is the documented asymmetry
// with Init, which writes all-ones.
func (s *BlockStorage) Read(idx uint32) ([]byte, error) {
	if int(idx) >= s.totalBlocks {
		return nil, wrapErr("read", EIO, fmt.Errorf("block %d out of range", idx))
	}
	f, err := os.Open(s.blockPath(idx))
	if os.IsNotExist(err) {
		return make([]byte, s.BytesPerBlock()), nil
	}
	if err != nil {
		return nil, wrapErr("read", EIO, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, wrapErr("read", EIO, err)
	}

	out := make([]byte, s.BytesPerBlock())
	bounds := img.Bounds()
	bit := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			byteIdx := bit / 8
			if byteIdx >= len(out) {
				break
			}
			if gray.Y > 127 {
				out[byteIdx] |= 1 << uint(7-bit%8)
			}
			bit++
		}
	}
	return out, nil
}

// Write packs buf (which must fit within BytesPerBlock) into a grayscale
// image and writes the full image file, padding any trailing pixels to
// white.
func (s *BlockStorage) Write(idx uint32, buf []byte) error {
	if int(idx) >= s.totalBlocks {
		return wrapErr("write", EIO, fmt.Errorf("block %d out of range", idx))
	}
	if len(buf) > s.BytesPerBlock() {
		return wrapErr("write", EIO, fmt.Errorf("buffer of %d bytes exceeds block capacity %d", len(buf), s.BytesPerBlock()))
	}
	return s.writeRaw(idx, buf)
}

func (s *BlockStorage) writeRaw(idx uint32, buf []byte) error {
	img := image.NewGray(image.Rect(0, 0, s.width, s.height))
	total := s.width * s.height
	for bit := 0; bit < total; bit++ {
		byteIdx := bit / 8
		var set bool
		if byteIdx < len(buf) {
			set = buf[byteIdx]&(1<<uint(7-bit%8)) != 0
		} else {
			set = true // pad trailing pixels white
		}
		v := uint8(0)
		if set {
			v = 255
		}
		x := bit % s.width
		y := bit / s.width
		img.SetGray(x, y, color.Gray{Y: v})
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return wrapErr("write", EIO, err)
	}
	if err := os.WriteFile(s.blockPath(idx), out.Bytes(), 0644); err != nil {
		return wrapErr("write", EIO, err)
	}
	return nil
}

// WriteFingerprint writes a block-sized buffer whose prefix is the ASCII
// fingerprint and whose tail is zero, into block 0.
func (s *BlockStorage) WriteFingerprint() error {
	buf := make([]byte, s.BytesPerBlock())
	copy(buf, []byte(s.fingerprint))
	return s.Write(0, buf)
}

// VerifyFingerprint reports whether block 0 currently starts with the
// configured fingerprint.
func (s *BlockStorage) VerifyFingerprint() (bool, error) {
	buf, err := s.Read(0)
	if err != nil {
		return false, err
	}
	fp := []byte(s.fingerprint)
	if len(buf) < len(fp) {
		return false, nil
	}
	return bytes.Equal(buf[:len(fp)], fp), nil
}
