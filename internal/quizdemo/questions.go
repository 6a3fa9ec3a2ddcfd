package quizdemo

// The fixed question set. {{base}} expands to the serving origin so
// file links stay absolute regardless of host and port.
var demoQuestions = []question{
	{
		body: `<h1>Question 1</h1>
<p>Download the sales data from <a href="{{base}}/data/sales.csv">{{base}}/data/sales.csv</a>.</p>
<p>What is the total sum of the sales column?</p>`,
		expected: 15000,
	},
	{
		body: `<h1>Question 2</h1>
<p>The product catalog is at <a href="{{base}}/data/products.csv">{{base}}/data/products.csv</a>.</p>
<p>How many distinct values appear in the category column?</p>`,
		expected: 7,
	},
	{
		body: `<h1>Question 3</h1>
<p>Inventory levels are listed in <a href="{{base}}/data/inventory.json">{{base}}/data/inventory.json</a>.</p>
<p>What is the maximum quantity across all items?</p>`,
		expected: 450,
	},
	{
		body: `<h1>Question 4</h1>
<p>Read the notes file at <a href="{{base}}/data/notes.txt">{{base}}/data/notes.txt</a>.</p>
<p>It contains an access code on the line beginning with "code:". What is the access code?</p>`,
		expected: "dataquest2024",
	},
	{
		body: `<h1>Question 5</h1>
<p>Weather readings are in <a href="{{base}}/data/weather.csv">{{base}}/data/weather.csv</a>.</p>
<p>What is the average of the temperature column? Round to 2 decimal places.</p>`,
		expected: 45.67,
	},
	{
		body: `<h1>Question 6</h1>
<p>Training data with columns x and y is at <a href="{{base}}/data/train.csv">{{base}}/data/train.csv</a>.</p>
<p>Fit a linear regression of y on x and report the mean squared error of the fit on the training data, rounded to 2 decimal places.</p>`,
		expected: 0.2,
	},
}

// demoFiles back the /data/ endpoints. The train.csv points sit on the
// line y = 2x + 3 with residuals of exactly ±0.5 arranged so the least
// squares fit recovers that line and the MSE comes out to 0.20.
var demoFiles = map[string]dataFile{
	"sales.csv": {
		contentType: "text/csv",
		body: `region,sales
north,1000
south,2000
east,1500
west,2500
central,3000
coastal,1250
mountain,1750
plains,2000
`,
	},
	"products.csv": {
		contentType: "text/csv",
		body: `product,category
keyboard,electronics
desk,furniture
notebook,stationery
monitor,electronics
lamp,lighting
chair,furniture
cable,electronics
planner,stationery
blender,appliances
kettle,appliances
backpack,accessories
charger,electronics
bookshelf,furniture
headphones,audio
`,
	},
	"inventory.json": {
		contentType: "application/json",
		body: `[
  {"item": "widget", "quantity": 120},
  {"item": "gadget", "quantity": 450},
  {"item": "gizmo", "quantity": 75},
  {"item": "doohickey", "quantity": 300},
  {"item": "thingamajig", "quantity": 220}
]
`,
	},
	"notes.txt": {
		contentType: "text/plain",
		body: `Meeting notes, March 12

Remember to rotate the staging credentials next sprint.
code: dataquest2024
Lunch order goes out at noon.
`,
	},
	"weather.csv": {
		contentType: "text/csv",
		body: `day,temperature
monday,45.2
tuesday,46.1
wednesday,45.71
`,
	},
	"train.csv": {
		contentType: "text/csv",
		body: `x,y
1,5.5
2,6.5
3,8.5
4,11.5
5,13
6,15
7,17.5
8,18.5
9,20.5
10,23.5
`,
	},
}
