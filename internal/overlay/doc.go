// Package overlay draws detection boxes onto a transparent surface sized to
// the displayed image, and composites that surface over the photo.
//
// Coordinates handed to the renderer are either absolute pixels of the
// natural image or fractions of the display size. Layout maps both onto the
// display, so the surface never needs to know the photo's real resolution.
package overlay
