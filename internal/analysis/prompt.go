package analysis

import "fmt"

const (
	DefaultLanguage         = "Polish"
	DefaultUnrecognizedName = "Nie rozpoznano jedzenia"
)

type PromptParams struct {
	Language         string
	UnrecognizedName string
}

func BuildPrompt(params PromptParams) string {
	language := params.Language
	if language == "" {
		language = DefaultLanguage
	}
	unrecognized := params.UnrecognizedName
	if unrecognized == "" {
		unrecognized = DefaultUnrecognizedName
	}

	return fmt.Sprintf(`You are a dietitian. Analyse this photo of food.
Return ONLY a plain JSON object (no markdown, no code fences).
Format:
{
  "name": "name of the dish in %s",
  "calories": number_of_kilocalories (number),
  "protein": grams_of_protein (number),
  "carbs": grams_of_carbohydrates (number),
  "fat": grams_of_fat (number)
}
If the photo does not show any food, return the JSON with all numbers set to 0 and the name %q.`,
		language, unrecognized)
}
