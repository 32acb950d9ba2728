package scheduling

import "time"

// GenerateSlots partitions the resolved window for a date into contiguous
// slots of slotDuration and marks each one's availability against the given
// appointments. A trailing remainder shorter than slotDuration is dropped.
// The result is an advisory snapshot; booking re-validates authoritatively.
func GenerateSlots(cal *Calendar, appts []Appointment, now time.Time, year int, month time.Month, day int, slotDuration, leadTime time.Duration) ([]Slot, error) {
	winStart, winEnd, ok, err := cal.ResolveWindow(year, month, day)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Slot{}, nil
	}

	earliest := now.Add(leadTime)

	var slots []Slot
	for cur := winStart; !cur.Add(slotDuration).After(winEnd); cur = cur.Add(slotDuration) {
		slot := Slot{
			Start:     cur,
			End:       cur.Add(slotDuration),
			Available: true,
		}

		for i := range appts {
			if !appts[i].Status.BlocksInterval() {
				continue
			}
			if appts[i].Overlaps(slot.Start, slot.End) {
				slot.Available = false
				slot.Reason = SlotReasonBooked
				break
			}
		}

		if slot.Available && slot.Start.Before(earliest) {
			slot.Available = false
			slot.Reason = SlotReasonLeadTime
		}

		slots = append(slots, slot)
	}

	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}
