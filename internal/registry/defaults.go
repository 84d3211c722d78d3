package registry

// DefaultDefinitions is the eight-way 12V switch panel of the car.
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: "switch1", Pin: 18, Name: "Front Lights", Description: "Main headlights"},
		{ID: "switch2", Pin: 19, Name: "Rear Lights", Description: "Tail/brake lights"},
		{ID: "switch3", Pin: 20, Name: "Left Signal", Description: "Left turn signal"},
		{ID: "switch4", Pin: 21, Name: "Right Signal", Description: "Right turn signal"},
		{ID: "switch5", Pin: 22, Name: "Horn/Buzzer", Description: "Audio alert"},
		{ID: "switch6", Pin: 23, Name: "Auxiliary 1", Description: "Extra switch 1"},
		{ID: "switch7", Pin: 24, Name: "Auxiliary 2", Description: "Extra switch 2"},
		{ID: "switch8", Pin: 25, Name: "Emergency", Description: "Emergency flashers"},
	}
}
