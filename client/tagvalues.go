package client

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/edgeflux/influxline/serialization"
)

// FetchTagValues walks SHOW TAG KEYS and SHOW TAG VALUES for a database
// and fills a TagCache with the result. The cache feeds the tabular
// deserializer's categorical reinterpretation of tag columns.
func (c *Client) FetchTagValues(database string, cache *serialization.TagCache) error {
	resp, err := c.Query(NewQuery(fmt.Sprintf("SHOW TAG KEYS ON %q", database), database, ""))
	if err != nil {
		return errors.Wrap(err, "show tag keys")
	}
	if err := resp.Error(); err != nil {
		return errors.Wrap(err, "show tag keys")
	}

	tagKeys := map[string][]string{}
	for _, result := range resp.Results {
		for _, series := range result.Series {
			for _, value := range series.Values {
				key, ok := value[0].(string)
				if !ok {
					return errors.Errorf("measurement %q: tag key is not a string", series.Name)
				}
				tagKeys[series.Name] = append(tagKeys[series.Name], key)
			}
		}
	}

	for measurement, keys := range tagKeys {
		entry := make(map[string][]string, len(keys))
		for _, key := range keys {
			q := fmt.Sprintf("SHOW TAG VALUES ON %q FROM %q WITH KEY = %q", database, measurement, key)
			resp, err := c.Query(NewQuery(q, database, ""))
			if err != nil {
				return errors.Wrapf(err, "show tag values for %s.%s", measurement, key)
			}
			if err := resp.Error(); err != nil {
				return errors.Wrapf(err, "show tag values for %s.%s", measurement, key)
			}
			for _, result := range resp.Results {
				for _, series := range result.Series {
					for _, value := range series.Values {
						if len(value) < 2 {
							continue
						}
						if v, ok := value[1].(string); ok {
							entry[key] = append(entry[key], v)
						}
					}
				}
			}
		}
		// whole-entry replacement keeps concurrent readers consistent
		cache.Replace(measurement, entry)
	}
	return nil
}
