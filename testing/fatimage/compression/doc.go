// Package compression provides tools to compress FAT fixture images for
// tests.
//
// FAT images are broken into fixed-size sectors, usually 512 bytes each.
// The emptier an image is, the more sectors consist entirely of null bytes.
// This means even a modest fixture (a few hundred KiB) is mostly dead space
// that doesn't need to be stored in the repository.
//
// To keep fixture images small, this package run-length encodes the raw
// image first, then gzips the result. The RLE pass here is RLE8, the scheme
// used by the Microsoft BMP file format: if a byte B occurs N times where
// N >= 2, B is written twice, followed by a third (unsigned) byte giving
// how many additional times B occurred. For example:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
//
// This represents runs of up to 257 bytes with three bytes. Longer runs are
// split into separate runs, so a run of 300 "X" becomes `XX 255 XX 41`.
package compression
