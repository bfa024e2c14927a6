// Texture effector preview tool - interactive slice of the noise field that
// drives texture effectors, with sliders for its parameters.
//
// Usage: go run ./cmd/texturepreview [-config scene.yaml]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"strings"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/config"
	"github.com/pthm-cable/psys/systems"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
	gridSize     = 128
	arrowStep    = 8 // Grid cells between gradient arrows
)

// TextureParams holds the texture effector parameters being tuned.
type TextureParams struct {
	Scale    float32
	Strength float32
	Extent   float32 // World units across the preview
	Slice    float32 // Z of the sampled plane
	Seed     int64
}

func defaultParams() TextureParams {
	return TextureParams{Scale: 1, Strength: 1, Extent: 8, Seed: 0}
}

// paramsFromConfig takes the first texture effector of the scene.
func paramsFromConfig(cfg *config.Config) (TextureParams, string) {
	params := defaultParams()
	for _, ec := range cfg.Effectors {
		if ec.Kind != "texture" {
			continue
		}
		if ec.Scale != 0 {
			params.Scale = float32(ec.Scale)
		}
		params.Strength = float32(ec.Strength)
		params.Seed = ec.Seed
		return params, ec.Name
	}
	return params, "texture"
}

func main() {
	configPath := flag.String("config", "", "Scene config to read the first texture effector from")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	params, name := paramsFromConfig(cfg)
	defaults := params

	rl.InitWindow(windowWidth, windowHeight, "Texture Effector Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	img := rl.GenImageColor(gridSize, gridSize, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	values := make([]float32, gridSize*gridSize)
	gradients := make([]r3.Vec, gridSize*gridSize)
	animating := false
	needsRegen := true

	for !rl.WindowShouldClose() {
		if animating {
			params.Slice += rl.GetFrameTime() * 0.25
			needsRegen = true
		}

		if needsRegen {
			sampleField(values, gradients, params)
			updateTexture(texture, values)
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: gridSize, Height: gridSize},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		drawArrows(gradients, params)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		minVal, maxVal, maxForce := fieldRange(values, gradients, params)
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Min: %.3f  Max: %.3f  Max force: %.3f", minVal, maxVal, maxForce), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Slice z: %.2f", params.Slice), 15, statsY+20, 16, rl.DarkGray)

		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Texture Effector", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		panelY = slider(&params.Scale, "Scale (noise frequency)", panelX, panelY, 0.05, 5, "%.2f", &needsRegen)
		panelY = slider(&params.Strength, "Strength", panelX, panelY, 0, 20, "%.1f", &needsRegen)
		panelY = slider(&params.Extent, "Extent (world units)", panelX, panelY, 1, 40, "%.1f", &needsRegen)
		panelY = slider(&params.Slice, "Slice z", panelX, panelY, -10, 10, "%.2f", &needsRegen)

		seed := float32(params.Seed)
		panelY = slider(&seed, "Seed", panelX, panelY, 0, 99999, "%.0f", &needsRegen)
		params.Seed = int64(seed)
		panelY += 10

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(animating, "Stop", "Animate")) {
			animating = !animating
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset Slice") {
			params.Slice = 0
			needsRegen = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			params.Seed = int64(rl.GetRandomValue(0, 99999))
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = defaults
			needsRegen = true
		}
		panelY += 55

		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		yaml := effectorYAML(name, params)
		for _, line := range strings.Split(yaml, "\n") {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(yaml)
		}

		rl.EndDrawing()
	}
}

// slider draws a labelled slider bound to v and returns the next Y.
func slider(v *float32, label string, x, y, lo, hi float32, format string, changed *bool) float32 {
	rl.DrawText(label, int32(x), int32(y), 14, rl.Gray)
	y += 18
	nv := gui.SliderBar(
		rl.Rectangle{X: x, Y: y, Width: float32(panelWidth - 80), Height: 20},
		fmt.Sprintf(format, lo), fmt.Sprintf(format, hi),
		*v, lo, hi,
	)
	rl.DrawText(fmt.Sprintf(format, *v), int32(x+float32(panelWidth-70)), int32(y+2), 16, rl.DarkGray)
	if nv != *v {
		*v = nv
		*changed = true
	}
	return y + 35
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// sampleField evaluates the noise and its gradient on the preview plane.
func sampleField(values []float32, gradients []r3.Vec, params TextureParams) {
	field := systems.NewNoiseField(params.Seed, float64(params.Scale))
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			co := gridPoint(x, y, params)
			values[y*gridSize+x] = float32(field.Value(co)*0.5 + 0.5)
			gradients[y*gridSize+x] = r3.Scale(float64(params.Strength), field.Gradient(co))
		}
	}
}

// gridPoint maps a grid cell center to world space. Grid rows grow
// downward on screen, world Y grows upward.
func gridPoint(x, y int, params TextureParams) r3.Vec {
	u := (float64(x)+0.5)/gridSize - 0.5
	v := 0.5 - (float64(y)+0.5)/gridSize
	ext := float64(params.Extent)
	return r3.Vec{X: u * ext, Y: v * ext, Z: float64(params.Slice)}
}

func fieldRange(values []float32, gradients []r3.Vec, params TextureParams) (minVal, maxVal, maxForce float32) {
	minVal, maxVal = 1, 0
	for i, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		if f := float32(r3.Norm(gradients[i])); f > maxForce {
			maxForce = f
		}
	}
	return minVal, maxVal, maxForce
}

// drawArrows draws the in-plane force on a coarse grid.
func drawArrows(gradients []r3.Vec, params TextureParams) {
	_, _, maxForce := fieldRange(nil, gradients, params)
	if maxForce == 0 {
		return
	}
	cell := float32(previewSize) / gridSize
	maxLen := cell * arrowStep * 0.9
	for y := arrowStep / 2; y < gridSize; y += arrowStep {
		for x := arrowStep / 2; x < gridSize; x += arrowStep {
			g := gradients[y*gridSize+x]
			sx := 10 + (float32(x)+0.5)*cell
			sy := 10 + (float32(y)+0.5)*cell
			k := maxLen / maxForce
			ex := sx + float32(g.X)*k
			ey := sy - float32(g.Y)*k
			rl.DrawLineEx(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: ex, Y: ey}, 1.5, rl.Color{R: 20, G: 20, B: 20, A: 200})
			rl.DrawCircle(int32(ex), int32(ey), 1.5, rl.Color{R: 20, G: 20, B: 20, A: 200})
		}
	}
}

func effectorYAML(name string, params TextureParams) string {
	return fmt.Sprintf(`effectors:
  - name: %s
    kind: texture
    scale: %.2f
    strength: %.1f
    seed: %d`, name, params.Scale, params.Strength, params.Seed)
}

// updateTexture updates the GPU texture from the grid values
func updateTexture(texture rl.Texture2D, grid []float32) {
	pixels := make([]color.RGBA, len(grid))
	for i, v := range grid {
		// Use a color gradient: dark blue -> cyan -> yellow -> white
		var r, g, b float32
		switch {
		case v < 0.25:
			t := v / 0.25
			r, g, b = 10+t*30, 20+t*60, 60+t*100
		case v < 0.5:
			t := (v - 0.25) / 0.25
			r, g, b = 40+t*20, 80+t*120, 160+t*40
		case v < 0.75:
			t := (v - 0.5) / 0.25
			r, g, b = 60+t*140, 200-t*40, 200-t*150
		default:
			t := float32(math.Min(1, float64(v-0.75)/0.25))
			r, g, b = 200+t*55, 160+t*95, 50+t*205
		}
		pixels[i] = color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
	}
	rl.UpdateTexture(texture, pixels)
}
