// Package load provides the synthetic CPU load that the load task runs to
// contend with the control tasks.
package load

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"math/rand"
)

// A Unit is one piece of CPU-bound work. It must not touch the flight state.
// Run returns the size or cost of the work it produced.
type Unit interface {
	Run() int
}

// UnitFunc adapts a function to the Unit interface.
type UnitFunc func() int

// Run calls f.
func (f UnitFunc) Run() int {
	return f()
}

// SpinUnit burns a fixed number of floating-point iterations. The cost does
// not depend on the speed of the host, only on Iterations.
type SpinUnit struct {
	Iterations int

	sink float64
}

// Run performs the iterations and returns their count.
func (u *SpinUnit) Run() int {
	u.sink = Spin(u.Iterations, u.sink)

	return u.Iterations
}

// Spin performs n dependent floating-point steps starting from seed.
func Spin(n int, seed float64) float64 {
	acc := seed
	for i := 0; i < n; i++ {
		acc += 0.0001 * math.Sin(float64(i)*0.001)
	}

	return acc
}

// EncodeUnit draws a filled circle at a random spot on a frame and encodes
// the frame as JPEG, standing in for camera frame compression.
type EncodeUnit struct {
	Width   int
	Height  int
	Quality int
	Radius  int

	frame *image.RGBA
	rng   *rand.Rand
	buf   bytes.Buffer
}

// NewEncodeUnit creates an encode unit with a black frame.
func NewEncodeUnit(width, height, quality int, seed int64) *EncodeUnit {
	u := &EncodeUnit{
		Width:   width,
		Height:  height,
		Quality: quality,
		Radius:  50,
		frame:   image.NewRGBA(image.Rect(0, 0, width, height)),
		rng:     rand.New(rand.NewSource(seed)),
	}

	return u
}

// Run draws and encodes one frame and returns the encoded size in bytes.
func (u *EncodeUnit) Run() int {
	cx := u.rng.Intn(u.Width)
	cy := u.rng.Intn(u.Height)
	u.drawCircle(cx, cy, color.RGBA{G: 255, A: 255})

	u.buf.Reset()

	err := jpeg.Encode(&u.buf, u.frame, &jpeg.Options{Quality: u.Quality})
	if err != nil {
		panic(err)
	}

	return u.buf.Len()
}

func (u *EncodeUnit) drawCircle(cx, cy int, c color.RGBA) {
	r2 := u.Radius * u.Radius
	for y := cy - u.Radius; y <= cy+u.Radius; y++ {
		for x := cx - u.Radius; x <= cx+u.Radius; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > r2 {
				continue
			}

			if image.Pt(x, y).In(u.frame.Rect) {
				u.frame.SetRGBA(x, y, c)
			}
		}
	}
}
