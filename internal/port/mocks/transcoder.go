package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/port"
)

// TranscoderMock is a testify mock of port.Transcoder with a typed expecter.
type TranscoderMock struct {
	mock.Mock
}

type TranscoderMock_Expecter struct {
	mock *mock.Mock
}

func (_m *TranscoderMock) EXPECT() *TranscoderMock_Expecter {
	return &TranscoderMock_Expecter{mock: &_m.Mock}
}

func (_m *TranscoderMock) Probe(ctx context.Context, path string) (*domain.VideoInfo, error) {
	ret := _m.Called(ctx, path)

	if rf, ok := ret.Get(0).(func(context.Context, string) (*domain.VideoInfo, error)); ok {
		return rf(ctx, path)
	}

	var r0 *domain.VideoInfo
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.VideoInfo)
	}
	return r0, ret.Error(1)
}

type TranscoderMock_Probe_Call struct {
	*mock.Call
}

func (_e *TranscoderMock_Expecter) Probe(ctx interface{}, path interface{}) *TranscoderMock_Probe_Call {
	return &TranscoderMock_Probe_Call{Call: _e.mock.On("Probe", ctx, path)}
}

func (_c *TranscoderMock_Probe_Call) Return(info *domain.VideoInfo, err error) *TranscoderMock_Probe_Call {
	_c.Call.Return(info, err)
	return _c
}

func (_c *TranscoderMock_Probe_Call) RunAndReturn(run func(context.Context, string) (*domain.VideoInfo, error)) *TranscoderMock_Probe_Call {
	_c.Call.Return(run)
	return _c
}

func (_m *TranscoderMock) Transcode(ctx context.Context, req port.TranscodeRequest, onProgress port.ProgressFunc) (string, error) {
	ret := _m.Called(ctx, req, onProgress)

	if rf, ok := ret.Get(0).(func(context.Context, port.TranscodeRequest, port.ProgressFunc) (string, error)); ok {
		return rf(ctx, req, onProgress)
	}
	return ret.String(0), ret.Error(1)
}

type TranscoderMock_Transcode_Call struct {
	*mock.Call
}

func (_e *TranscoderMock_Expecter) Transcode(ctx interface{}, req interface{}, onProgress interface{}) *TranscoderMock_Transcode_Call {
	return &TranscoderMock_Transcode_Call{Call: _e.mock.On("Transcode", ctx, req, onProgress)}
}

func (_c *TranscoderMock_Transcode_Call) Return(outputPath string, err error) *TranscoderMock_Transcode_Call {
	_c.Call.Return(outputPath, err)
	return _c
}

func (_c *TranscoderMock_Transcode_Call) RunAndReturn(run func(context.Context, port.TranscodeRequest, port.ProgressFunc) (string, error)) *TranscoderMock_Transcode_Call {
	_c.Call.Return(run)
	return _c
}

func (_m *TranscoderMock) Segment(ctx context.Context, mp4Path string, hlsDir string) (string, error) {
	ret := _m.Called(ctx, mp4Path, hlsDir)

	if rf, ok := ret.Get(0).(func(context.Context, string, string) (string, error)); ok {
		return rf(ctx, mp4Path, hlsDir)
	}
	return ret.String(0), ret.Error(1)
}

type TranscoderMock_Segment_Call struct {
	*mock.Call
}

func (_e *TranscoderMock_Expecter) Segment(ctx interface{}, mp4Path interface{}, hlsDir interface{}) *TranscoderMock_Segment_Call {
	return &TranscoderMock_Segment_Call{Call: _e.mock.On("Segment", ctx, mp4Path, hlsDir)}
}

func (_c *TranscoderMock_Segment_Call) Return(manifestPath string, err error) *TranscoderMock_Segment_Call {
	_c.Call.Return(manifestPath, err)
	return _c
}

func (_c *TranscoderMock_Segment_Call) RunAndReturn(run func(context.Context, string, string) (string, error)) *TranscoderMock_Segment_Call {
	_c.Call.Return(run)
	return _c
}

// NewTranscoderMock registers a cleanup that asserts every expectation.
func NewTranscoderMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *TranscoderMock {
	m := &TranscoderMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ port.Transcoder = (*TranscoderMock)(nil)
