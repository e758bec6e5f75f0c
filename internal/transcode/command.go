// Package transcode runs the external converters that turn downloaded media into
// the two playback formats: DFPWM audio via ffmpeg and 32vid video via sanjuuni.
package transcode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/youcube/internal/media"
)

// Kind identifies what a task produces.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Prefix returns the log prefix of the tool that produces this kind.
func (k Kind) Prefix() string {
	if k == KindVideo {
		return "[Sanjuuni]"
	}
	return "[FFmpeg]"
}

// DFPWM output parameters.
const (
	AudioFormat     = "dfpwm"
	AudioSampleRate = 48000
	AudioChannels   = 1
)

// Task is one converter invocation. Success means exit status zero.
type Task struct {
	Kind   Kind
	Binary string
	Args   []string
	Input  string
	Output string
}

// String returns the command line.
func (t *Task) String() string {
	return t.Binary + " " + strings.Join(t.Args, " ")
}

// FFmpegBuilder builds ffmpeg audio tasks.
type FFmpegBuilder struct {
	binary     string
	globalArgs []string
	input      string
	outputArgs []string
	output     string
	overwrite  bool
}

// NewFFmpegBuilder creates a builder for the given ffmpeg binary.
func NewFFmpegBuilder(ffmpegPath string) *FFmpegBuilder {
	return &FFmpegBuilder{binary: ffmpegPath}
}

// HideBanner hides the ffmpeg banner.
func (b *FFmpegBuilder) HideBanner() *FFmpegBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// NoStdin stops ffmpeg from reading the terminal.
func (b *FFmpegBuilder) NoStdin() *FFmpegBuilder {
	b.globalArgs = append(b.globalArgs, "-nostdin")
	return b
}

// Overwrite enables output file overwriting.
func (b *FFmpegBuilder) Overwrite() *FFmpegBuilder {
	b.overwrite = true
	return b
}

// Input sets the input file.
func (b *FFmpegBuilder) Input(input string) *FFmpegBuilder {
	b.input = input
	return b
}

// Format sets the output container format.
func (b *FFmpegBuilder) Format(format string) *FFmpegBuilder {
	b.outputArgs = append(b.outputArgs, "-f", format)
	return b
}

// SampleRate sets the output sample rate in Hz.
func (b *FFmpegBuilder) SampleRate(hz int) *FFmpegBuilder {
	b.outputArgs = append(b.outputArgs, "-ar", strconv.Itoa(hz))
	return b
}

// AudioChannels sets the number of output channels.
func (b *FFmpegBuilder) AudioChannels(channels int) *FFmpegBuilder {
	b.outputArgs = append(b.outputArgs, "-ac", strconv.Itoa(channels))
	return b
}

// Output sets the output file.
func (b *FFmpegBuilder) Output(output string) *FFmpegBuilder {
	b.output = output
	return b
}

// Build builds the task.
func (b *FFmpegBuilder) Build() *Task {
	args := append([]string(nil), b.globalArgs...)
	if b.overwrite {
		args = append(args, "-y")
	}
	args = append(args, "-i", b.input)
	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return &Task{Kind: KindAudio, Binary: b.binary, Args: args, Input: b.input, Output: b.output}
}

// AudioTask converts input to mono 48 kHz DFPWM at output.
func AudioTask(ffmpegPath, input, output string) *Task {
	return NewFFmpegBuilder(ffmpegPath).
		HideBanner().
		NoStdin().
		Overwrite().
		Input(input).
		Format(AudioFormat).
		SampleRate(AudioSampleRate).
		AudioChannels(AudioChannels).
		Output(output).
		Build()
}

// SanjuuniBuilder builds sanjuuni video tasks.
type SanjuuniBuilder struct {
	binary        string
	dims          media.Dimensions
	input         string
	output        string
	raw           bool
	disableOpenCL bool
}

// NewSanjuuniBuilder creates a builder for the given sanjuuni binary.
func NewSanjuuniBuilder(sanjuuniPath string) *SanjuuniBuilder {
	return &SanjuuniBuilder{binary: sanjuuniPath}
}

// Size sets the output raster.
func (b *SanjuuniBuilder) Size(dims media.Dimensions) *SanjuuniBuilder {
	b.dims = dims
	return b
}

// Input sets the input file.
func (b *SanjuuniBuilder) Input(input string) *SanjuuniBuilder {
	b.input = input
	return b
}

// Raw selects the raw 32vid output mode.
func (b *SanjuuniBuilder) Raw() *SanjuuniBuilder {
	b.raw = true
	return b
}

// Output sets the output file.
func (b *SanjuuniBuilder) Output(output string) *SanjuuniBuilder {
	b.output = output
	return b
}

// DisableOpenCL forces CPU processing when disable is true.
func (b *SanjuuniBuilder) DisableOpenCL(disable bool) *SanjuuniBuilder {
	b.disableOpenCL = disable
	return b
}

// Build builds the task.
func (b *SanjuuniBuilder) Build() *Task {
	args := []string{
		fmt.Sprintf("--width=%d", b.dims.Width),
		fmt.Sprintf("--height=%d", b.dims.Height),
		"-i", b.input,
	}
	if b.raw {
		args = append(args, "--raw")
	}
	args = append(args, "-o", b.output)
	if b.disableOpenCL {
		args = append(args, "--disable-opencl")
	}

	return &Task{Kind: KindVideo, Binary: b.binary, Args: args, Input: b.input, Output: b.output}
}

// VideoTask converts input to raw 32vid at dims.
func VideoTask(sanjuuniPath, input, output string, dims media.Dimensions, disableOpenCL bool) *Task {
	return NewSanjuuniBuilder(sanjuuniPath).
		Size(dims).
		Input(input).
		Raw().
		Output(output).
		DisableOpenCL(disableOpenCL).
		Build()
}
