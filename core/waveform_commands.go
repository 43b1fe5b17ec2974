package core

import (
	"errors"
	"fmt"

	"wavegen/protocol"
)

var ErrShutdown = errors.New("waveform: firmware is shut down")

// Result codes carried by waveform_result
const (
	ResultOK                uint8 = 0
	ResultInvalidPin        uint8 = 1
	ResultInvalidAlign      uint8 = 2
	ResultInvalidPeriod     uint8 = 3
	ResultDutyExceedsPeriod uint8 = 4
	ResultTimerIdle         uint8 = 5
	ResultShutdown          uint8 = 6
	ResultFailed            uint8 = 255
)

var resultErrors = map[uint8]error{
	ResultInvalidPin:        ErrInvalidPin,
	ResultInvalidAlign:      ErrInvalidAlign,
	ResultInvalidPeriod:     ErrInvalidPeriod,
	ResultDutyExceedsPeriod: ErrDutyExceedsPeriod,
	ResultTimerIdle:         ErrTimerIdle,
	ResultShutdown:          ErrShutdown,
}

// ResultCode maps a request error to its wire code
func ResultCode(err error) uint8 {
	if err == nil {
		return ResultOK
	}
	for code, e := range resultErrors {
		if errors.Is(err, e) {
			return code
		}
	}
	return ResultFailed
}

// ResultError maps a wire code back to the request error
func ResultError(code uint8) error {
	if code == ResultOK {
		return nil
	}
	if err, ok := resultErrors[code]; ok {
		return err
	}
	return fmt.Errorf("waveform: request failed with code %d", code)
}

// RegisterWaveformCommands registers the waveform messages on r. Handlers
// act on the generator registered with SetGenerator.
func RegisterWaveformCommands(r *CommandRegistry) {
	r.Register("start_waveform",
		"pin=%c high_ticks=%u low_ticks=%u run_ticks=%u align=%i offset_ticks=%u auto_pwm=%c",
		func(data *[]byte) error { return handleStartWaveform(r, data) })
	r.Register("stop_waveform", "pin=%c",
		func(data *[]byte) error { return handleStopWaveform(r, data) })
	r.Register("waveform_status", "pin=%c",
		func(data *[]byte) error { return handleWaveformStatus(r, data) })

	r.RegisterResponse("waveform_result", "code=%c")
	r.RegisterResponse("waveform_state", "pin=%c active=%c level=%c")
}

func handleStartWaveform(r *CommandRegistry, data *[]byte) error {
	var args [4]uint32
	for i := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		args[i] = v
	}
	align, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return err
	}
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	autoPwm, err := protocol.DecodeVLQBool(data)
	if err != nil {
		return err
	}

	pin := uint8(args[0])
	if args[0] >= MaxChannels {
		pin = MaxChannels // Never truncate onto a valid pin
	}
	switch {
	case align < 0:
		align = int32(NoAlign)
	case align >= MaxChannels:
		align = MaxChannels
	}

	if IsShutdown() {
		err = ErrShutdown
	} else {
		err = MustGenerator().StartCycles(pin, args[1], args[2], args[3], int8(align), offset, autoPwm)
	}
	if rerr := respondResult(r, err); rerr != nil {
		return rerr
	}
	if err != nil {
		return fmt.Errorf("start_waveform pin=%d: %w", args[0], err)
	}
	return nil
}

func handleStopWaveform(r *CommandRegistry, data *[]byte) error {
	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if pin >= MaxChannels {
		err = ErrInvalidPin
	} else {
		err = MustGenerator().Stop(uint8(pin))
	}
	if rerr := respondResult(r, err); rerr != nil {
		return rerr
	}
	if err != nil {
		return fmt.Errorf("stop_waveform pin=%d: %w", pin, err)
	}
	return nil
}

func handleWaveformStatus(r *CommandRegistry, data *[]byte) error {
	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	g := MustGenerator()
	p := uint8(MaxChannels)
	if pin < MaxChannels {
		p = uint8(pin)
	}
	args := protocol.AppendVLQUint(nil, pin)
	args = protocol.AppendVLQBool(args, g.Active(p))
	args = protocol.AppendVLQBool(args, g.Level(p))
	return r.Respond("waveform_state", args)
}

func respondResult(r *CommandRegistry, err error) error {
	return r.Respond("waveform_result", protocol.AppendVLQUint(nil, uint32(ResultCode(err))))
}
