package booking

import (
	"fmt"
	"strings"
	"time"
)

const (
	startReply = "I'd be happy to help you book an appointment! Let me collect some information. " +
		"What's your name? (You can say 'cancel' at any time to stop)"
	cancelReply   = "No problem! The appointment booking has been cancelled. How else can I help you today?"
	badDateReply  = `Please provide a valid date in YYYY-MM-DD format (e.g., 2025-12-25)`
	badTimeReply  = `Please provide time in HH:MM format (24-hour), e.g., "14:30" for 2:30 PM`
	retryReply    = "Sorry, there was an error booking your appointment. Please try again or contact us directly."
	fallbackReply = "I'm here to help! How can I assist you today?"
)

// Turn is the outcome of one booking-flow transition.
type Turn struct {
	// State is the snapshot to persist, assuming any completed booking was
	// stored successfully.
	State State
	Reply string

	// Completed is non-nil when the flow finished with a validated record
	// that must be persisted before the conversation is saved.
	Completed *Request

	// RetryState and RetryReply apply only when Completed is set and
	// persisting it fails: the flow is held at the confirm step so the next
	// message triggers a fresh confirm attempt.
	RetryState State
	RetryReply string
}

// Start begins the booking flow. Callers must only invoke it when no flow is
// in progress; booking intent during an active flow is treated as step input.
func Start() Turn {
	return Turn{
		State: State{InProgress: true, Step: StepOwnerName},
		Reply: startReply,
	}
}

// Cancel aborts the flow, discarding every collected field.
func Cancel() Turn {
	return Turn{State: State{}, Reply: cancelReply}
}

// Next advances an in-progress flow by one visitor message. It is a pure
// transition: the input state is never mutated.
func Next(state State, message string, now time.Time) Turn {
	input := strings.TrimSpace(message)

	switch state.Step {
	case StepOwnerName:
		state.OwnerName = input
		state.Step = StepPetName
		return Turn{State: state, Reply: fmt.Sprintf("Thanks, %s! What's your pet's name?", state.OwnerName)}

	case StepPetName:
		state.PetName = input
		state.Step = StepPhone
		return Turn{State: state, Reply: fmt.Sprintf("Got it, %s! What's your phone number?", state.PetName)}

	case StepPhone:
		state.Phone = input
		state.Step = StepDate
		return Turn{State: state, Reply: `Perfect! What date would you prefer for the appointment? (Please use YYYY-MM-DD format, e.g., "2025-12-25")`}

	case StepDate:
		normalized, ok := ParseDate(input)
		if !ok {
			return Turn{State: state, Reply: badDateReply}
		}
		state.Date = normalized
		state.Step = StepTime
		return Turn{State: state, Reply: `Great! What time would you prefer? (Please use 24-hour format, e.g., "14:30" for 2:30 PM)`}

	case StepTime:
		if !ValidTime(input) {
			return Turn{State: state, Reply: badTimeReply}
		}
		state.Time = input
		state.Step = StepConfirm
		return finalize(state, now)

	case StepConfirm:
		// A previous confirm attempt failed to persist; re-validate the
		// stored fields and try again, regardless of message content.
		return finalize(state, now)

	default:
		// Unknown or missing step in a flow marked in-progress. Reply with
		// the generic help prompt and leave the state untouched.
		return Turn{State: state, Reply: fallbackReply}
	}
}

// finalize runs full record validation at the confirm step. An invalid record
// restarts the whole flow from the first step; a valid one is handed back for
// persistence along with the hold-at-confirm retry state.
func finalize(state State, now time.Time) Turn {
	req := state.request()
	valid, errs := Validate(req, now)
	if !valid {
		return Turn{
			State: State{InProgress: true, Step: StepOwnerName},
			Reply: fmt.Sprintf("I need to correct some information: %s. Let's start over. What's your name?",
				strings.Join(errs, ", ")),
		}
	}

	return Turn{
		State:      State{},
		Reply:      confirmationReply(req),
		Completed:  &req,
		RetryState: state,
		RetryReply: retryReply,
	}
}

func confirmationReply(req Request) string {
	return fmt.Sprintf("Appointment booked successfully!\n\n"+
		"Details:\n- Pet Owner: %s\n- Pet: %s\n- Phone: %s\n- Date: %s\n- Time: %s\n\n"+
		"We'll contact you to confirm. Is there anything else I can help you with?",
		req.PetOwnerName, req.PetName, req.PhoneNumber, req.PreferredDate, req.PreferredTime)
}
