// Package pushnet implements PushNet, a classifier which
// predicts whether a planar push on an object will succeed
// given a top-down image of the object and the planned
// push velocity.
//
// Sub-packages handle data loading, class-balanced
// sampling, training, metrics, and monitoring.
package pushnet

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyconv"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/convmarkup"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var m Model
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeModel)
}

// NumClasses is the number of model outputs.
// Class 1 means the push succeeded.
const NumClasses = 2

// Arch describes the inputs and the feature size of a
// Model.
type Arch struct {
	ImageWidth  int
	ImageHeight int
	ImageDepth  int
	VelocityDim int
	FeatureDim  int
}

// DefaultArch matches the 96x96 single-channel images and
// 3-dimensional velocities of the stable pushing dataset.
var DefaultArch = Arch{
	ImageWidth:  96,
	ImageHeight: 96,
	ImageDepth:  1,
	VelocityDim: 3,
	FeatureDim:  128,
}

// ImageSize returns the number of components in one
// image.
func (a Arch) ImageSize() int {
	return a.ImageWidth * a.ImageHeight * a.ImageDepth
}

// A Model is a two-branch classifier.
//
// Images go through a convolutional tower and velocities
// through a small fully-connected branch.
// The two are concatenated per sample and fed through
// the trunk, whose output is the feature vector.
// The head maps features to class logits.
type Model struct {
	Image    anynet.Net
	Velocity anynet.Net
	Mixer    anynet.Mixer
	Trunk    anynet.Net
	Head     anynet.Net
}

// NewModel creates a randomly initialized Model.
//
// It fails if the image is too small for the conv tower.
func NewModel(c anyvec.Creator, a Arch) (*Model, error) {
	if a.VelocityDim <= 0 || a.FeatureDim <= 0 {
		return nil, errors.New("new model: velocity and feature sizes must be positive")
	}
	image, outSize, err := convTower(c, a)
	if err != nil {
		return nil, essentials.AddCtx("new model", err)
	}
	velOut := 16
	return &Model{
		Image: image,
		Velocity: anynet.Net{
			anynet.NewFC(c, a.VelocityDim, velOut),
			anynet.ReLU,
		},
		Mixer: anynet.ConcatMixer{},
		Trunk: anynet.Net{
			anynet.NewFC(c, outSize+velOut, a.FeatureDim),
			anynet.ReLU,
		},
		Head: anynet.Net{
			anynet.NewFC(c, a.FeatureDim, NumClasses),
		},
	}, nil
}

// convTowerMarkup describes the image tower for a given
// input width, height and depth.
const convTowerMarkup = `
Input(w=%d, h=%d, d=%d)

Conv(w=5, h=5, n=16, sx=2, sy=2)
ReLU
MaxPool(w=2, h=2)

Conv(w=3, h=3, n=32, sx=1, sy=1)
ReLU
MaxPool(w=2, h=2)
`

func convTower(c anyvec.Creator, a Arch) (anynet.Net, int, error) {
	code := fmt.Sprintf(convTowerMarkup, a.ImageWidth, a.ImageHeight, a.ImageDepth)
	tooSmall := func(err error) error {
		return fmt.Errorf("image %dx%dx%d too small for conv tower: %v", a.ImageWidth,
			a.ImageHeight, a.ImageDepth, err)
	}

	parsed, err := convmarkup.Parse(code)
	if err != nil {
		return nil, 0, err
	}
	block, err := parsed.Block(convmarkup.Dims{}, convmarkup.DefaultCreators())
	if err != nil {
		return nil, 0, tooSmall(err)
	}
	out := block.OutDims()
	if out.Width < 1 || out.Height < 1 || out.Depth < 1 {
		return nil, 0, tooSmall(fmt.Errorf("output is %dx%dx%d", out.Width, out.Height,
			out.Depth))
	}

	layer, err := anyconv.FromMarkup(c, code)
	if err != nil {
		return nil, 0, tooSmall(err)
	}
	net, ok := layer.(anynet.Net)
	if !ok {
		return nil, 0, fmt.Errorf("conv tower is %T, not anynet.Net", layer)
	}
	return net, out.Volume(), nil
}

// Arch recovers the architecture of a Model from its
// layers.
func (m *Model) Arch() (Arch, error) {
	var res Arch
	if len(m.Image) == 0 || len(m.Velocity) == 0 || len(m.Trunk) == 0 {
		return res, errors.New("model arch: missing layers")
	}
	conv, ok := m.Image[0].(*anyconv.Conv)
	if !ok {
		return res, fmt.Errorf("model arch: image tower starts with %T", m.Image[0])
	}
	vel, ok := m.Velocity[0].(*anynet.FC)
	if !ok {
		return res, fmt.Errorf("model arch: velocity branch starts with %T", m.Velocity[0])
	}
	trunk, ok := m.Trunk[0].(*anynet.FC)
	if !ok {
		return res, fmt.Errorf("model arch: trunk starts with %T", m.Trunk[0])
	}
	res.ImageWidth = conv.InputWidth
	res.ImageHeight = conv.InputHeight
	res.ImageDepth = conv.InputDepth
	res.VelocityDim = vel.InCount
	res.FeatureDim = trunk.OutCount
	return res, nil
}

// CheckArch returns an error if the Model was not built
// for the architecture a.
func (m *Model) CheckArch(a Arch) error {
	actual, err := m.Arch()
	if err != nil {
		return err
	}
	if actual != a {
		return fmt.Errorf("model arch %+v does not match %+v", actual, a)
	}
	return nil
}

// DeserializeModel deserializes a Model.
func DeserializeModel(d []byte) (*Model, error) {
	var res Model
	err := serializer.DeserializeAny(d, &res.Image, &res.Velocity, &res.Mixer, &res.Trunk,
		&res.Head)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	return &res, nil
}

// Features computes the feature vectors for a batch.
//
// The images and velocities are packed, one sample after
// another.
func (m *Model) Features(images, velocities anydiff.Res, batch int) anydiff.Res {
	mixed := m.Mixer.Mix(
		m.Image.Apply(images, batch),
		m.Velocity.Apply(velocities, batch),
		batch,
	)
	return m.Trunk.Apply(mixed, batch)
}

// Apply computes the class logits for a batch.
func (m *Model) Apply(images, velocities anydiff.Res, batch int) anydiff.Res {
	return m.Head.Apply(m.Features(images, velocities, batch), batch)
}

// Parameters returns the learnable parameters, image
// tower first.
func (m *Model) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, x := range []interface{}{m.Image, m.Velocity, m.Mixer, m.Trunk, m.Head} {
		if p, ok := x.(anynet.Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/unixpickle/pushnet.Model"
}

// Serialize serializes the Model.
func (m *Model) Serialize() ([]byte, error) {
	mixer, ok := m.Mixer.(serializer.Serializer)
	if !ok {
		return nil, fmt.Errorf("serialize Model: not a Serializer: %T", m.Mixer)
	}
	return serializer.SerializeAny(m.Image, m.Velocity, mixer, m.Trunk, m.Head)
}
