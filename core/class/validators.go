package class

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

var (
	timeOrderTag  = "timeorder"
	timeOrderText = "start time must be before end time"

	anyDayTag  = "anyday"
	anyDayText = "at least one day of the week must be selected"
)

// RegisterValidators hooks the class schedule rules into `validate`.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(classStructValidation, NewClass{})
	validate.RegisterStructValidation(recurringStructValidation, NewRecurringClass{})

	core.RegisterCustomTranslation(validate, translator, timeOrderTag, timeOrderText)
	core.RegisterCustomTranslation(validate, translator, anyDayTag, anyDayText)
}

func classStructValidation(sl validator.StructLevel) {
	nc := sl.Current().Interface().(NewClass)
	if nc.StartTime.IsZero() || nc.EndTime.IsZero() {
		return // `required` covers this
	}
	if !nc.StartTime.Before(nc.EndTime) {
		sl.ReportError(nc.StartTime, "startTime", "StartTime", timeOrderTag, "")
	}
}

func recurringStructValidation(sl validator.StructLevel) {
	nrc := sl.Current().Interface().(NewRecurringClass)

	var any bool
	for _, selected := range nrc.Recurrence.Days {
		if selected {
			any = true
			break
		}
	}
	if !any {
		sl.ReportError(nrc.Recurrence.Days, "days", "Days", anyDayTag, "")
	}

	start := nrc.Recurrence.StartHour*60 + nrc.Recurrence.StartMinute
	end := nrc.Recurrence.EndHour*60 + nrc.Recurrence.EndMinute
	if start >= end {
		sl.ReportError(nrc.Recurrence.StartHour, "startHour", "StartHour", timeOrderTag, "")
	}
}
