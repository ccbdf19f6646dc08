// Package msgs defines the messages published about the emulated sensor
// and the commands accepted from remote controllers.
package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/pupsensor/pkg/device"
	fx "github.com/robotalks/pupsensor/pkg/framework"
	"github.com/robotalks/pupsensor/pkg/link"
)

// TypeIDs
const (
	EventTypeID       uint32 = GroupSensor | TypeIDKindEvent | 0x0000
	StatusTypeID      uint32 = GroupSensor | TypeIDKindEvent | 0x0001
	ModeDataTypeID    uint32 = GroupSensor | TypeIDKindEvent | 0x0002
	SetModeDataTypeID uint32 = GroupSensor | 0x0000
	SelectModeTypeID  uint32 = GroupSensor | 0x0001
)

// Event is a link event.
type Event struct {
	Code int32  `protobuf:"varint,1,opt,name=code,proto3" json:"code"`
	Mode int32  `protobuf:"varint,2,opt,name=mode,proto3" json:"mode,omitempty"`
	Time int64  `protobuf:"varint,3,opt,name=time,proto3" json:"time"`
	Name string `protobuf:"bytes,4,opt,name=name,proto3" json:"name"`
}

// NewEvent converts a link event.
func NewEvent(evt link.Event) *Event {
	return &Event{
		Code: int32(evt.Code()),
		Mode: int32(evt.Mode),
		Time: evt.Time.UnixNano(),
		Name: evt.String(),
	}
}

// Timestamp returns Time as time.Time.
func (m *Event) Timestamp() time.Time {
	return time.Unix(0, m.Time)
}

// NewMessage implements Message.
func (m *Event) NewMessage() fx.Message { return &Event{} }

// TypeID implements SerializableMessage.
func (m *Event) TypeID() uint32 { return EventTypeID }

// Serializable implements SerializableMessage.
func (m *Event) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Event) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Event) Reset() { *m = Event{} }

// String implements proto.Message.
func (m *Event) String() string { return proto.CompactTextString(m) }

// Status reports the connection and device identity.
type Status struct {
	Connected    bool   `protobuf:"varint,1,opt,name=connected,proto3" json:"connected"`
	State        string `protobuf:"bytes,2,opt,name=state,proto3" json:"state"`
	DeviceID     uint32 `protobuf:"varint,3,opt,name=device_id,json=deviceId,proto3" json:"device_id"`
	FwVersion    string `protobuf:"bytes,4,opt,name=fw_version,json=fwVersion,proto3" json:"fw_version"`
	HwVersion    string `protobuf:"bytes,5,opt,name=hw_version,json=hwVersion,proto3" json:"hw_version"`
	SelectedMode int32  `protobuf:"varint,6,opt,name=selected_mode,json=selectedMode,proto3" json:"selected_mode"`
	ModeCount    int32  `protobuf:"varint,7,opt,name=mode_count,json=modeCount,proto3" json:"mode_count"`
}

// NewStatus creates a Status from a device snapshot.
func NewStatus(info *device.Info, state link.State) *Status {
	return &Status{
		Connected:    state == link.StateStreaming,
		State:        state.String(),
		DeviceID:     uint32(info.ID),
		FwVersion:    device.FormatVersion(info.FwVersion),
		HwVersion:    device.FormatVersion(info.HwVersion),
		SelectedMode: int32(info.SelectedMode),
		ModeCount:    int32(len(info.Modes)),
	}
}

// NewMessage implements Message.
func (m *Status) NewMessage() fx.Message { return &Status{} }

// TypeID implements SerializableMessage.
func (m *Status) TypeID() uint32 { return StatusTypeID }

// Serializable implements SerializableMessage.
func (m *Status) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// ModeData carries all data items of a mode.
type ModeData struct {
	Mode   int32     `protobuf:"varint,1,opt,name=mode,proto3" json:"mode"`
	Name   string    `protobuf:"bytes,2,opt,name=name,proto3" json:"name"`
	Values []float64 `protobuf:"fixed64,3,rep,packed,name=values,proto3" json:"values"`
}

// NewModeData creates ModeData from a mode.
func NewModeData(m *device.Mode) *ModeData {
	return &ModeData{
		Mode:   int32(m.Index),
		Name:   m.Name,
		Values: append([]float64(nil), m.Data...),
	}
}

// NewMessage implements Message.
func (m *ModeData) NewMessage() fx.Message { return &ModeData{} }

// TypeID implements SerializableMessage.
func (m *ModeData) TypeID() uint32 { return ModeDataTypeID }

// Serializable implements SerializableMessage.
func (m *ModeData) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *ModeData) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ModeData) Reset() { *m = ModeData{} }

// String implements proto.Message.
func (m *ModeData) String() string { return proto.CompactTextString(m) }

// SetModeData sets one data item of a mode.
type SetModeData struct {
	Mode  int32   `protobuf:"varint,1,opt,name=mode,proto3" json:"mode"`
	Item  int32   `protobuf:"varint,2,opt,name=item,proto3" json:"item"`
	Value float64 `protobuf:"fixed64,3,opt,name=value,proto3" json:"value"`
}

// Apply sets the item on dev, false if out of range.
func (m *SetModeData) Apply(dev *device.Device) bool {
	return dev.SetModeData(int(m.Mode), int(m.Item), m.Value)
}

// NewMessage implements Message.
func (m *SetModeData) NewMessage() fx.Message { return &SetModeData{} }

// TypeID implements SerializableMessage.
func (m *SetModeData) TypeID() uint32 { return SetModeDataTypeID }

// Serializable implements SerializableMessage.
func (m *SetModeData) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SetModeData) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SetModeData) Reset() { *m = SetModeData{} }

// String implements proto.Message.
func (m *SetModeData) String() string { return proto.CompactTextString(m) }

// SelectMode selects the streamed mode, as the hub does with SELECT.
type SelectMode struct {
	Mode int32 `protobuf:"varint,1,opt,name=mode,proto3" json:"mode"`
}

// Apply selects the mode on dev, false if out of range.
func (m *SelectMode) Apply(dev *device.Device) bool {
	return dev.SelectMode(int(m.Mode))
}

// NewMessage implements Message.
func (m *SelectMode) NewMessage() fx.Message { return &SelectMode{} }

// TypeID implements SerializableMessage.
func (m *SelectMode) TypeID() uint32 { return SelectModeTypeID }

// Serializable implements SerializableMessage.
func (m *SelectMode) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SelectMode) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SelectMode) Reset() { *m = SelectMode{} }

// String implements proto.Message.
func (m *SelectMode) String() string { return proto.CompactTextString(m) }

// Command is a message changing the device.
type Command interface {
	SerializableMessage
	Apply(*device.Device) bool
}
