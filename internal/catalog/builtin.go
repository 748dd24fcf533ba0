package catalog

import "kidpoints/internal/models"

func good(id, label string, value float64) models.Action {
	return models.Action{ID: id, Label: label, Type: models.ActionGood, Value: value}
}

func bad(id, label string, value float64) models.Action {
	return models.Action{ID: id, Label: label, Type: models.ActionBad, Value: value}
}

// builtins is the immutable seed. Ids are stable across releases.
var builtins = []models.Action{
	// school & homework
	good("sc_1", "Did their homework", 1.0),
	good("sc_2", "Got a good grade", 2.0),
	good("sc_3", "Packed their school bag", 0.5),
	good("sc_4", "Behaved well at school", 1.0),
	good("sc_5", "Took part in class", 0.5),
	good("sc_6", "Listened to the teacher", 0.5),
	good("sc_7", "Read a book", 1.0),
	bad("sc_bad_1", "Got a note in the school diary", -2.0),
	bad("sc_bad_2", "Forgot their things", -0.5),
	bad("sc_bad_3", "Skipped their homework", -1.0),
	bad("sc_bad_4", "Chatted in class", -0.5),
	bad("sc_bad_5", "Was late", -0.5),

	// home & chores
	good("hm_1", "Tidied their room", 1.0),
	good("hm_2", "Made their bed", 0.5),
	good("hm_3", "Set the table", 0.5),
	good("hm_4", "Cleared the table", 0.5),
	good("hm_5", "Emptied the dishwasher", 1.0),
	good("hm_6", "Took out the trash", 1.0),
	good("hm_7", "Put their toys away", 0.5),
	good("hm_8", "Helped cook", 1.0),
	good("hm_9", "Watered the plants", 0.5),
	good("hm_10", "Folded their laundry", 1.0),
	bad("hm_bad_1", "Left things lying around", -0.5),
	bad("hm_bad_2", "Broke something", -1.0),
	bad("hm_bad_3", "Made a mess in the house", -0.5),
	bad("hm_bad_4", "Left the light on", -0.5),
	bad("hm_bad_5", "Slammed a door", -0.5),

	// behavior & family
	good("bh_1", "Obeyed right away", 1.0),
	good("bh_2", "Helped a parent", 1.5),
	good("bh_3", "Did not need reminding", 0.5),
	good("bh_4", "Was polite", 0.5),
	good("bh_5", "Gave a hug", 0.5),
	good("bh_6", "Played calmly", 0.5),
	good("bh_7", "Shared", 1.0),
	good("bh_8", "Told the truth", 1.0),
	good("bh_9", "Apologized", 0.5),
	bad("bh_bad_1", "Made a parent shout", -1.5),
	bad("bh_bad_2", "Needed repeated reminders", -0.5),
	bad("bh_bad_3", "Talked back", -2.0),
	bad("bh_bad_4", "Threw a tantrum", -1.0),
	bad("bh_bad_5", "Hit or bit someone", -3.0),
	bad("bh_bad_6", "Lied", -2.0),
	bad("bh_bad_7", "Used bad words", -1.0),
	bad("bh_bad_8", "Yelled", -0.5),
	bad("bh_bad_9", "Got into a fight", -3.0),
	bad("bh_bad_10", "Threw a fit", -1.0),
	bad("bh_bad_11", "Interrupted", -0.5),

	// hygiene & care
	good("hy_1", "Brushed their teeth", 0.5),
	good("hy_2", "Took a calm shower", 0.5),
	good("hy_3", "Got dressed alone", 0.5),
	good("hy_4", "Washed their hands", 0.5),
	bad("hy_bad_1", "Did not wash their hands", -0.5),

	// meals & table
	good("tb_1", "Ate their vegetables", 1.0),
	good("tb_2", "Finished their plate", 0.5),
	bad("tb_bad_1", "Refused to eat", -1.0),
	bad("tb_bad_2", "Elbows on the table", -0.5),

	// sleep & screens
	good("sl_1", "Went to bed on time", 1.0),
	good("sl_2", "Turned off the screen when asked", 1.0),
	bad("sl_bad_1", "Refused to go to bed", -1.0),
	bad("sl_bad_2", "Too much screen time", -1.0),
}

// Builtins returns a copy of the built-in seed
func Builtins() []models.Action {
	return append([]models.Action(nil), builtins...)
}

func isBuiltin(id string) bool {
	for _, a := range builtins {
		if a.ID == id {
			return true
		}
	}
	return false
}
