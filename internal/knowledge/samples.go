package knowledge

import (
	"context"
	"log"
)

func sample(id, content, source, sourceType, topic string, confidence float64) Document {
	return Document{
		ID:      id,
		Content: content,
		Metadata: map[string]any{
			"source":      source,
			"source_type": sourceType,
			"topic":       topic,
			"confidence":  confidence,
		},
	}
}

// SampleDocuments is a small general-knowledge corpus for demos and mock runs
func SampleDocuments() []Document {
	return []Document{
		sample("sample-earth-age",
			"The Earth is approximately 4.54 billion years old, with an error range of about 50 million years. This age has been determined through radiometric dating of meteorite material and is consistent with the ages of the oldest-known terrestrial and lunar samples.",
			"Scientific consensus", "scientific_database", "Earth", 0.95),
		sample("sample-boiling-point",
			"Water boils at 100 degrees Celsius (212 degrees Fahrenheit) at standard atmospheric pressure (1 atmosphere). The boiling point can change based on atmospheric pressure - at higher elevations where pressure is lower, water boils at a lower temperature.",
			"Basic physics knowledge", "scientific_database", "Physics", 0.99),
		sample("sample-speed-of-light",
			"The speed of light in a vacuum is 299,792,458 meters per second. This is a fundamental physical constant denoted by the symbol 'c'. According to Einstein's theory of relativity, this speed represents the maximum speed at which energy, matter, or information can travel through space.",
			"Physics principles", "scientific_database", "Physics", 0.99),
		sample("sample-paris",
			"The capital of France is Paris. Paris is situated on the Seine River, in northern France, at the heart of the Île-de-France region. It is one of the world's most populous urban areas and one of the most visited cities worldwide.",
			"Geographic knowledge", "factual_database", "Geography", 0.99),
		sample("sample-everest",
			"Mount Everest is Earth's highest mountain above sea level, located in the Mahalangur Himal sub-range of the Himalayas on the border between China and Nepal. Its elevation is 8,848.86 meters (29,031.7 ft) above sea level. The international border between China and Nepal runs across its summit point.",
			"Geographic knowledge", "factual_database", "Geography", 0.99),
		sample("sample-climate",
			"Climate change is primarily caused by human activities, particularly the burning of fossil fuels which increases greenhouse gas concentrations in Earth's atmosphere. Scientific consensus on this fact is overwhelming, with more than a dozen independent scientific societies reaching this conclusion based on multiple lines of evidence.",
			"Scientific consensus", "scientific_database", "Climate", 0.95),
		sample("sample-vaccines",
			"Vaccines are safe and effective for preventing infectious diseases. The benefits of vaccination greatly outweigh the risks. Side effects are generally minor and temporary. Serious side effects are extremely rare.",
			"Medical consensus", "scientific_database", "Medicine", 0.95),
		sample("sample-lung-cancer",
			"The primary cause of lung cancer is smoking tobacco. About 80-90% of lung cancer cases are caused by smoking, and many of the remainder are caused by exposure to secondhand smoke, radon gas, asbestos, and other carcinogens.",
			"Medical research", "scientific_database", "Medicine", 0.95),
	}
}

// Seed adds SampleDocuments to s
func Seed(ctx context.Context, s Store) (int, error) {
	n, err := AddAll(ctx, s, SampleDocuments())
	if err == nil {
		log.Printf("knowledge: added %d sample documents", n)
	}
	return n, err
}
