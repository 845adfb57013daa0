package service

// CodeTemplate is the starter script served to clients for processing their
// uploaded file. The input is mounted at /data/input_file.<ext> and anything
// written to /data/output becomes a downloadable result artifact.
const CodeTemplate = `# Template for processing your data file.
# The input file is mounted at /data/input_file.csv (or .xlsx/.xls).
# Write your results into /data/output/.

import glob
import json
import pandas as pd

input_path = glob.glob('/data/input_file.*')[0]

if input_path.endswith('.csv'):
    df = pd.read_csv(input_path)
elif input_path.endswith(('.xlsx', '.xls')):
    df = pd.read_excel(input_path)
else:
    raise ValueError(f"Unsupported file format: {input_path}")

# Process your data here.
# Example: calculate summary statistics.
result = {
    'row_count': len(df),
    'column_count': len(df.columns),
    'columns': list(df.columns),
    'summary': df.describe().to_dict(),
}

# Option 1: save as JSON
with open('/data/output/result.json', 'w') as f:
    json.dump(result, f)

# Option 2: save as CSV
df.to_csv('/data/output/processed_data.csv', index=False)

# Option 3: save as Excel
df.to_excel('/data/output/processed_data.xlsx', index=False)

print("Processing completed successfully")
`
