package events

import "github.com/maxaizer/vacancy-dispatcher/internal/entities"

var VacancyPersistedTopic = "VacancyPersistedEvent"

type VacancyPersisted struct {
	Vacancy entities.Vacancy
	Matches []entities.ProfessionScore
}

// ClassifierConfigChangedTopic carries no payload: subscribers reload professions and stop words.
var ClassifierConfigChangedTopic = "ClassifierConfigChangedEvent"

type ClassifierConfigChanged struct {
	Reason string
}
