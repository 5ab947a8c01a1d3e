// Package bwfs implements a userspace filesystem that persists each logical
// block as a black-and-white raster image, one bit per pixel.
package bwfs
